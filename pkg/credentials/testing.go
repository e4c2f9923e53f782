package credentials

import (
	"testing"

	"github.com/systmms/credops/pkg/domains"
)

// StoreContract defines a standard test suite that all store
// implementations must pass
type StoreContract struct {
	// CreateStore creates a fresh store to test plus a principal that
	// holds every permission on it
	CreateStore func(t *testing.T) (Store, Principal)

	// NewCredential creates a credential the store accepts, with the
	// given identifier
	NewCredential func(t *testing.T, id string) Credential

	// ReadOnly skips the mutation tests for stores that refuse writes
	ReadOnly bool
}

// RunStoreContractTests runs the standard store contract test suite
func RunStoreContractTests(t *testing.T, contract StoreContract) {
	t.Run("Contract", func(t *testing.T) {
		t.Run("Context", func(t *testing.T) {
			testStoreContext(t, contract)
		})

		t.Run("GlobalDomain", func(t *testing.T) {
			testStoreGlobalDomain(t, contract)
		})

		t.Run("UnknownDomain", func(t *testing.T) {
			testStoreUnknownDomain(t, contract)
		})

		if !contract.ReadOnly {
			t.Run("AddAndList", func(t *testing.T) {
				testStoreAddAndList(t, contract)
			})

			t.Run("DuplicateAdd", func(t *testing.T) {
				testStoreDuplicateAdd(t, contract)
			})

			t.Run("RemoveMissing", func(t *testing.T) {
				testStoreRemoveMissing(t, contract)
			})

			t.Run("Update", func(t *testing.T) {
				testStoreUpdate(t, contract)
			})

			t.Run("AnonymousDenied", func(t *testing.T) {
				testStoreAnonymousDenied(t, contract)
			})

			t.Run("GlobalDomainImmortal", func(t *testing.T) {
				testStoreGlobalDomainImmortal(t, contract)
			})
		}

		t.Run("ListingsAreCopies", func(t *testing.T) {
			testStoreListingsAreCopies(t, contract)
		})
	})
}

func testStoreContext(t *testing.T, contract StoreContract) {
	store, _ := contract.CreateStore(t)

	ctx := store.Context()
	if ctx == nil {
		t.Fatal("Store.Context() returned nil")
	}
	if Path(ctx) == "" {
		t.Error("Store.Context() has an empty path")
	}
}

func testStoreGlobalDomain(t *testing.T, contract StoreContract) {
	store, _ := contract.CreateStore(t)

	ds := store.Domains()
	if len(ds) == 0 {
		t.Fatal("Store.Domains() returned no domains, expected at least the global domain")
	}
	if !ds[0].IsGlobal() {
		t.Errorf("Store.Domains() first entry is %q, expected the global domain", ds[0].Name())
	}

	global, ok := store.DomainByName("")
	if !ok {
		t.Fatal("Store.DomainByName(\"\") did not find the global domain")
	}
	if !global.IsGlobal() {
		t.Error("Store.DomainByName(\"\") returned a non-global domain")
	}
}

func testStoreUnknownDomain(t *testing.T, contract StoreContract) {
	store, _ := contract.CreateStore(t)

	creds := store.Credentials(domains.New("no-such-domain", ""))
	if creds == nil {
		t.Error("Store.Credentials() returned nil for an unknown domain, expected an empty slice")
	}
	if len(creds) != 0 {
		t.Errorf("Store.Credentials() returned %d credentials for an unknown domain", len(creds))
	}
}

func testStoreAddAndList(t *testing.T, contract StoreContract) {
	store, as := contract.CreateStore(t)
	cred := contract.NewCredential(t, "contract-add")

	changed, err := store.AddCredentials(as, domains.Global(), cred)
	if err != nil {
		t.Fatalf("Store.AddCredentials() failed: %v", err)
	}
	if !changed {
		t.Fatal("Store.AddCredentials() reported no change for a new credential")
	}

	listed := store.Credentials(domains.Global())
	found := false
	for _, c := range listed {
		if c.ID() == cred.ID() {
			found = true
		}
	}
	if !found {
		t.Errorf("added credential %q not in listing of %d credentials", cred.ID(), len(listed))
	}
}

func testStoreDuplicateAdd(t *testing.T, contract StoreContract) {
	store, as := contract.CreateStore(t)
	cred := contract.NewCredential(t, "contract-dup")

	if _, err := store.AddCredentials(as, domains.Global(), cred); err != nil {
		t.Fatalf("Store.AddCredentials() failed: %v", err)
	}

	changed, err := store.AddCredentials(as, domains.Global(), cred)
	if err != nil {
		t.Fatalf("duplicate Store.AddCredentials() failed: %v", err)
	}
	if changed {
		t.Error("duplicate Store.AddCredentials() reported a change, expected a no-op")
	}
	if n := len(store.Credentials(domains.Global())); n != 1 {
		t.Errorf("store holds %d credentials after duplicate add, expected 1", n)
	}
}

func testStoreRemoveMissing(t *testing.T, contract StoreContract) {
	store, as := contract.CreateStore(t)
	cred := contract.NewCredential(t, "contract-missing")

	changed, err := store.RemoveCredentials(as, domains.Global(), cred)
	if err != nil {
		t.Fatalf("Store.RemoveCredentials() failed for a missing credential: %v", err)
	}
	if changed {
		t.Error("Store.RemoveCredentials() reported a change for a missing credential")
	}
}

func testStoreUpdate(t *testing.T, contract StoreContract) {
	store, as := contract.CreateStore(t)
	current := contract.NewCredential(t, "contract-update")
	replacement := contract.NewCredential(t, "contract-update-v2")

	if _, err := store.AddCredentials(as, domains.Global(), current); err != nil {
		t.Fatalf("Store.AddCredentials() failed: %v", err)
	}

	changed, err := store.UpdateCredentials(as, domains.Global(), current, replacement)
	if err != nil {
		t.Fatalf("Store.UpdateCredentials() failed: %v", err)
	}
	if !changed {
		t.Fatal("Store.UpdateCredentials() reported no change")
	}

	listed := store.Credentials(domains.Global())
	for _, c := range listed {
		if c.ID() == current.ID() {
			t.Errorf("replaced credential %q still listed", current.ID())
		}
	}
}

func testStoreAnonymousDenied(t *testing.T, contract StoreContract) {
	store, _ := contract.CreateStore(t)
	cred := contract.NewCredential(t, "contract-anon")

	changed, err := store.AddCredentials(Principal{}, domains.Global(), cred)
	if err == nil {
		t.Error("Store.AddCredentials() accepted an anonymous principal")
	}
	if changed {
		t.Error("Store.AddCredentials() changed state for an anonymous principal")
	}
	if n := len(store.Credentials(domains.Global())); n != 0 {
		t.Errorf("store holds %d credentials after a denied add", n)
	}
}

func testStoreGlobalDomainImmortal(t *testing.T, contract StoreContract) {
	store, as := contract.CreateStore(t)

	changed, _ := store.RemoveDomain(as, domains.Global())
	if changed {
		t.Error("Store.RemoveDomain() removed the global domain")
	}
	if _, ok := store.DomainByName(""); !ok {
		t.Fatal("global domain gone after attempted removal")
	}

	changed, _ = store.AddDomain(as, domains.Global())
	if changed {
		t.Error("Store.AddDomain() re-added the global domain")
	}
}

func testStoreListingsAreCopies(t *testing.T, contract StoreContract) {
	store, as := contract.CreateStore(t)

	if !contract.ReadOnly {
		cred := contract.NewCredential(t, "contract-copy")
		if _, err := store.AddCredentials(as, domains.Global(), cred); err != nil {
			t.Fatalf("Store.AddCredentials() failed: %v", err)
		}
	}

	first := store.Credentials(domains.Global())
	for i := range first {
		first[i] = nil
	}

	second := store.Credentials(domains.Global())
	for _, c := range second {
		if c == nil {
			t.Fatal("mutating a returned listing changed the store")
		}
	}
}
