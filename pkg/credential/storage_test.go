package credential

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

const testNamespace = "com.example.GoogleAuthenticator"

func testRecord(token string) Record {
	return Record{
		FieldConsumerKey:    "key-1",
		FieldConsumerSecret: "secret-1",
		FieldAccessToken:    token,
		FieldRefreshToken:   "ref-1",
		FieldExpiresAt:      "2026-03-01T12:00:00Z",
	}
}

// exerciseStorage checks the contract every SecureStorage must honor.
func exerciseStorage(t *testing.T, storage SecureStorage) {
	t.Helper()
	ctx := context.Background()

	_, err := storage.Get(ctx, testNamespace, "key-1")
	assert.ErrorIs(t, err, ErrNotFound)

	err = storage.Update(ctx, testNamespace, "key-1", testRecord("tok-0"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, storage.Create(ctx, testNamespace, "key-1", testRecord("tok-1")))
	assert.ErrorIs(t, storage.Create(ctx, testNamespace, "key-1", testRecord("tok-x")), ErrAlreadyExists)

	got, err := storage.Get(ctx, testNamespace, "key-1")
	require.NoError(t, err)
	assert.Equal(t, testRecord("tok-1"), got)

	require.NoError(t, storage.Update(ctx, testNamespace, "key-1", testRecord("tok-2")))
	got, err = storage.Get(ctx, testNamespace, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got[FieldAccessToken])

	// Same account under another namespace is a separate record.
	_, err = storage.Get(ctx, "other.namespace", "key-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = storage.Get(ctx, testNamespace, "key-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage(t *testing.T) {
	storage := NewMemoryStorage()
	exerciseStorage(t, storage)
	assert.Equal(t, 1, storage.Len())

	t.Run("returned records are copies", func(t *testing.T) {
		got, err := storage.Get(context.Background(), testNamespace, "key-1")
		require.NoError(t, err)
		got[FieldAccessToken] = "mutated"

		again, err := storage.Get(context.Background(), testNamespace, "key-1")
		require.NoError(t, err)
		assert.Equal(t, "tok-2", again[FieldAccessToken])
	})
}

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewFileStorage(dir, "correct horse")
	require.NoError(t, err)
	exerciseStorage(t, storage)

	path := storage.Path(testNamespace, "key-1")
	assert.Equal(t, filepath.Join(dir, "com.example.GoogleAuthenticator"), filepath.Dir(path))
	assert.FileExists(t, path)

	t.Run("reopens with the same passphrase", func(t *testing.T) {
		reopened, err := NewFileStorage(dir, "correct horse")
		require.NoError(t, err)
		got, err := reopened.Get(context.Background(), testNamespace, "key-1")
		require.NoError(t, err)
		assert.Equal(t, "tok-2", got[FieldAccessToken])
	})

	t.Run("wrong passphrase cannot open records", func(t *testing.T) {
		reopened, err := NewFileStorage(dir, "wrong")
		require.NoError(t, err)
		_, err = reopened.Get(context.Background(), testNamespace, "key-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty passphrase rejected", func(t *testing.T) {
		_, err := NewFileStorage(t.TempDir(), "")
		assert.ErrorIs(t, err, ErrEmptyPassphrase)
	})
}

func TestSQLiteStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.db")
	storage, err := OpenSQLiteStorage(context.Background(), path, "correct horse")
	require.NoError(t, err)
	exerciseStorage(t, storage)
	require.NoError(t, storage.Close())

	reopened, err := OpenSQLiteStorage(context.Background(), path, "correct horse")
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), testNamespace, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got[FieldAccessToken])

	_, err = OpenSQLiteStorage(context.Background(), " ", "x")
	assert.Error(t, err)
}

func TestKubernetesStorage(t *testing.T) {
	scheme := runtime.NewScheme()
	_ = corev1.AddToScheme(scheme)
	k8sClient := fake.NewClientBuilder().WithScheme(scheme).Build()

	storage := NewKubernetesStorage(k8sClient, "auth")
	exerciseStorage(t, storage)

	secret := &corev1.Secret{}
	require.NoError(t, k8sClient.Get(context.Background(), storage.key(testNamespace, "key-1"), secret))
	assert.Equal(t, "auth", secret.Namespace)
	assert.Equal(t, corev1.SecretTypeOpaque, secret.Type)
	assert.Equal(t, "gauth", secret.Labels[LabelManagedBy])
	assert.Equal(t, testNamespace, secret.Annotations[AnnotationNamespace])
	assert.Equal(t, "key-1", secret.Annotations[AnnotationAccount])
	assert.Equal(t, []byte("tok-2"), secret.Data[FieldAccessToken])
}

func TestSecretName(t *testing.T) {
	a := SecretName(testNamespace, "key-1")
	assert.Len(t, a, len(secretNamePrefix)+secretNameHashLen)
	assert.Equal(t, a, SecretName(testNamespace, "key-1"))
	assert.NotEqual(t, a, SecretName(testNamespace, "key-2"))
	assert.NotEqual(t, a, SecretName("other", "key-1"))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"com.touchwonders.GoogleAuthenticator": "com.touchwonders.GoogleAuthenticator",
		"a/b\\c:d":                             "a_b_c_d",
		"../..":                                "default",
		"  ":                                   "default",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
