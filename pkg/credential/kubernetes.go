package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Labels and annotations placed on credential Secrets.
const (
	LabelManagedBy          = "app.kubernetes.io/managed-by"
	LabelNamespaceHash      = "gauth.touchwonders.com/namespace-hash"
	AnnotationNamespace     = "gauth.touchwonders.com/namespace"
	AnnotationAccount       = "gauth.touchwonders.com/account"
	managedByValue          = "gauth"
	secretNamePrefix        = "gauth-"
	secretNameHashLen       = 40
	namespaceHashLabelChars = 16
)

// KubernetesStorage stores each record as an Opaque Secret. Record fields
// map one-to-one onto Secret data keys.
type KubernetesStorage struct {
	client        client.Client
	kubeNamespace string
}

// NewKubernetesStorage wraps an existing controller-runtime client. Secrets
// are created in kubeNamespace.
func NewKubernetesStorage(c client.Client, kubeNamespace string) *KubernetesStorage {
	if kubeNamespace == "" {
		kubeNamespace = "default"
	}
	return &KubernetesStorage{client: c, kubeNamespace: kubeNamespace}
}

// NewKubernetesStorageFromConfig builds a client from the ambient kubeconfig
// or in-cluster configuration.
func NewKubernetesStorageFromConfig(kubeNamespace string) (*KubernetesStorage, error) {
	restConfig, err := ctrl.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load Kubernetes config: %w", err)
	}

	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	k8sClient, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return NewKubernetesStorage(k8sClient, kubeNamespace), nil
}

// SecretName returns the Secret name used for a namespace and account.
func SecretName(namespace, account string) string {
	sum := sha256.Sum256([]byte(namespace + "\x00" + account))
	return secretNamePrefix + hex.EncodeToString(sum[:])[:secretNameHashLen]
}

func namespaceHash(namespace string) string {
	sum := sha256.Sum256([]byte(namespace))
	return hex.EncodeToString(sum[:])[:namespaceHashLabelChars]
}

func (k *KubernetesStorage) key(namespace, account string) types.NamespacedName {
	return types.NamespacedName{Namespace: k.kubeNamespace, Name: SecretName(namespace, account)}
}

func (k *KubernetesStorage) Get(ctx context.Context, namespace, account string) (Record, error) {
	secret := &corev1.Secret{}
	if err := k.client.Get(ctx, k.key(namespace, account), secret); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	record := make(Record, len(secret.Data))
	for field, value := range secret.Data {
		record[field] = string(value)
	}
	return record, nil
}

func (k *KubernetesStorage) Create(ctx context.Context, namespace, account string, record Record) error {
	key := k.key(namespace, account)
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      key.Name,
			Namespace: key.Namespace,
			Labels: map[string]string{
				LabelManagedBy:     managedByValue,
				LabelNamespaceHash: namespaceHash(namespace),
			},
			Annotations: map[string]string{
				AnnotationNamespace: namespace,
				AnnotationAccount:   account,
			},
		},
		Type: corev1.SecretTypeOpaque,
		Data: secretData(record),
	}

	if err := k.client.Create(ctx, secret); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create secret: %w", err)
	}
	return nil
}

func (k *KubernetesStorage) Update(ctx context.Context, namespace, account string, record Record) error {
	secret := &corev1.Secret{}
	if err := k.client.Get(ctx, k.key(namespace, account), secret); err != nil {
		if apierrors.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get secret: %w", err)
	}

	secret.Data = secretData(record)
	if err := k.client.Update(ctx, secret); err != nil {
		if apierrors.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update secret: %w", err)
	}
	return nil
}

func secretData(record Record) map[string][]byte {
	data := make(map[string][]byte, len(record))
	for field, value := range record {
		data[field] = []byte(value)
	}
	return data
}
