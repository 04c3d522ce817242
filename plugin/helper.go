package clverify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/helper/jsonutil"
	"github.com/hashicorp/vault/sdk/helper/locksutil"
	"github.com/hashicorp/vault/sdk/logical"

	"clverify/issuerkey"
	"clverify/verifier"
)

func (b *backend) constructPath(pathAr []string) string {
	return strings.Join(pathAr, "/")
}

// dataStore writes data as JSON under the path joined from pathOptions.
func (b *backend) dataStore(ctx context.Context, data interface{}, pathOptions ...string) error {
	if len(pathOptions) == 0 || pathOptions[0] == "" {
		return errors.New("error in path options")
	}

	buf, err := json.Marshal(data)
	if err != nil {
		return errwrap.Wrapf("json encoding failed: {{err}}", err)
	}

	entry := &logical.StorageEntry{
		Key:   b.constructPath(pathOptions),
		Value: buf,
	}
	if err := b.storage.Put(ctx, entry); err != nil {
		return errwrap.Wrapf("failed to write: {{err}}", err)
	}
	return nil
}

// dataLoad decodes the JSON stored under the joined path into out. It
// reports false when nothing is stored there.
func (b *backend) dataLoad(ctx context.Context, out interface{}, pathOptions ...string) (bool, error) {
	entry, err := b.storage.Get(ctx, b.constructPath(pathOptions))
	if err != nil {
		return false, errwrap.Wrapf("read failed: {{err}}", err)
	}

	// Fast-path the no data case
	if entry == nil {
		return false, nil
	}

	if err := jsonutil.DecodeJSON(entry.Value, out); err != nil {
		return false, errwrap.Wrapf("json decoding failed: {{err}}", err)
	}
	return true, nil
}

func (b *backend) getEntries(ctx context.Context, pathAr []string) ([]string, error) {
	path := b.constructPath(pathAr)
	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}

	entries, err := b.storage.List(ctx, path)
	if err != nil {
		return nil, err
	}

	var modifiedEntries []string
	for _, entry := range entries {
		entry = strings.TrimSuffix(entry, "/")
		entry = strings.TrimPrefix(entry, "/")

		modifiedEntries = append(modifiedEntries, entry)
	}
	return modifiedEntries, nil
}

func (b *backend) handleList(prefix string) framework.OperationFunc {
	return func(ctx context.Context, req *logical.Request, d *framework.FieldData) (*logical.Response, error) {
		entries, err := b.getEntries(ctx, []string{prefix})
		if err != nil {
			return nil, err
		}
		return logical.ListResponse(entries), nil
	}
}

// failure turns a verification error into a response. Proof and key
// problems the caller can fix become error responses; anything else is
// logged with its stack and returned as an internal error.
func (b *backend) failure(op string, err error) (*logical.Response, error) {
	switch {
	case verifier.IsStructural(err):
		return logical.ErrorResponse(malformedMessage, err), nil
	case errors.Is(err, verifier.ErrUnknownKey), errors.Is(err, verifier.ErrUnknownCredDef):
		return logical.ErrorResponse(err.Error()), nil
	}

	b.Logger().Error("verification failed", "operation", op, "error", err)
	b.Logger().Debug("verification failure stack", "operation", op, "stack", goerrors.Wrap(err, 1).ErrorStack())
	return nil, err
}

// issuerKeyStore resolves issuer keys from storage through the LRU cache.
type issuerKeyStore struct {
	b *backend
}

func (s *issuerKeyStore) FetchIssuerKey(ctx context.Context, id string) (*issuerkey.PublicKey, error) {
	cache := s.b.cache()
	if cached, ok := cache.Get(id); ok {
		return cached.(*issuerkey.PublicKey), nil
	}

	// a delete or store cannot slip between the load and the cache fill
	lock := locksutil.LockForKey(s.b.keyLocks, id)
	lock.RLock()
	defer lock.RUnlock()

	var wire issuerkey.Wire
	found, err := s.b.dataLoad(ctx, &wire, issuerKeysPath, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errwrap.Wrapf(fmt.Sprintf("issuer key %s: {{err}}", id), verifier.ErrNotFound)
	}

	// stored keys are canonical decimal, whatever they were imported as
	pk, err := issuerkey.FromWire(wire, nil)
	if err != nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("stored issuer key %s: {{err}}", id), err)
	}
	cache.Add(id, pk)
	return pk, nil
}

func (s *issuerKeyStore) store(ctx context.Context, pk *issuerkey.PublicKey) error {
	lock := locksutil.LockForKey(s.b.keyLocks, pk.ID())
	lock.Lock()
	defer lock.Unlock()

	if err := s.b.dataStore(ctx, pk.ToWireWithMasterSecret(), issuerKeysPath, pk.ID()); err != nil {
		return err
	}
	s.b.cache().Remove(pk.ID())
	return nil
}

func (s *issuerKeyStore) delete(ctx context.Context, id string) error {
	lock := locksutil.LockForKey(s.b.keyLocks, id)
	lock.Lock()
	defer lock.Unlock()

	if err := s.b.storage.Delete(ctx, s.b.constructPath([]string{issuerKeysPath, id})); err != nil {
		return errwrap.Wrapf("failed to delete: {{err}}", err)
	}
	s.b.cache().Remove(id)
	return nil
}

// credDefStore resolves credential definitions from storage.
type credDefStore struct {
	b *backend
}

func (s *credDefStore) FetchCredDef(ctx context.Context, id string) (*verifier.CredentialDefinition, error) {
	var def verifier.CredentialDefinition
	found, err := s.b.dataLoad(ctx, &def, credDefsPath, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errwrap.Wrapf(fmt.Sprintf("credential definition %s: {{err}}", id), verifier.ErrNotFound)
	}
	return &def, nil
}

func sliceContains(s []string, str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}
