package workerrun

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultcrack/recoverd/internal/coordclient"
	"github.com/vaultcrack/recoverd/internal/logging"
	"github.com/vaultcrack/recoverd/internal/walletdesc"
)

func descriptorFor(t *testing.T, passphrase string) walletdesc.Descriptor {
	t.Helper()
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)

	buf := append([]byte(passphrase), salt...)
	sum := sha512.Sum512(buf)
	buf = sum[:]
	derivedKey, iv := buf[0:32], buf[32:48]

	privKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	privKeyBytes := privKey.Serialize()
	pubKeyBytes := privKey.PubKey().SerializeUncompressed()

	masterKey := make([]byte, 32)
	_, err = rand.Read(masterKey)
	require.NoError(t, err)

	first := sha256.Sum256(pubKeyBytes)
	second := sha256.Sum256(first[:])
	innerIV := second[:16]

	encryptedPrivateKey := cbcEncrypt(t, masterKey, innerIV, privKeyBytes)
	encryptedMasterKey := cbcEncrypt(t, derivedKey, iv, masterKey)

	return walletdesc.Descriptor{
		Salt:                  salt,
		DerivationIterations:  1,
		EncryptedMasterKey:    encryptedMasterKey,
		EncryptedPrivateKey:   encryptedPrivateKey,
		UncompressedPublicKey: pubKeyBytes,
	}
}

func cbcEncrypt(t *testing.T, key, iv, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)
	return ciphertext
}

// TestLoop_ReportsMatchAndConfirmsThenExits spins a minimal fake coordinator
// that hands out one batch containing the real passphrase, then asserts the
// worker reports success and confirms the find before exiting on its own.
func TestLoop_ReportsMatchAndConfirmsThenExits(t *testing.T) {
	desc := descriptorFor(t, "the-real-one")

	var leaseCount, resultCalls, foundCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/work/request", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&leaseCount, 1)
		if n > 1 {
			json.NewEncoder(w).Encode(coordclient.LeaseResponse{Success: false, PasswordFound: true})
			return
		}
		json.NewEncoder(w).Encode(coordclient.LeaseResponse{
			Success:   true,
			Passwords: []string{"nope1", "the-real-one", "nope2"},
			Encrypt:   desc,
			BatchID:   "w1-1",
		})
	})
	mux.HandleFunc("/work/result", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&resultCalls, 1)
		var body coordclient.ResultRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Success)
		assert.Equal(t, "the-real-one", body.FoundPassword)
		json.NewEncoder(w).Encode(coordclient.ResultResponse{Success: true})
	})
	mux.HandleFunc("/work/found", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&foundCalls, 1)
		json.NewEncoder(w).Encode(coordclient.FoundResponse{Success: true, PasswordFound: true})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := coordclient.New(srv.URL, "tok")
	runner := New(client, "w1", 2, 0, logging.NewDefault("test"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, runner.Loop(ctx))

	assert.Equal(t, int32(1), resultCalls)
	assert.Equal(t, int32(1), foundCalls)
}

// TestLoop_ExitsWhenLatchAlreadySet covers the case where the very first
// lease response reports the password already found.
func TestLoop_ExitsWhenLatchAlreadySet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/work/request", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(coordclient.LeaseResponse{Success: false, PasswordFound: true})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := coordclient.New(srv.URL, "tok")
	runner := New(client, "w1", 2, 0, logging.NewDefault("test"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, runner.Loop(ctx))
}

func TestLocalParallelism_ClampsToMaxWorkers(t *testing.T) {
	r := &Runner{cpuCount: 8, maxWorkers: 3}
	assert.Equal(t, 3, r.localParallelism())
}

func TestLocalParallelism_UncappedWhenMaxWorkersZero(t *testing.T) {
	r := &Runner{cpuCount: 8, maxWorkers: 0}
	assert.Equal(t, 8, r.localParallelism())
}
