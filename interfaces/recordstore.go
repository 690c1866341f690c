package interfaces

// RecordStore is the password-gated encrypted local store.
type RecordStore interface {
	Exists() bool
	Open(password string) error
	Create(password string) error
	Close() error
	Reset() error
	ChangePassword(oldPassword, newPassword string) error

	GetAccounts() ([]Account, error)
	AddAccount(account Account) error

	HasMasterKey() (bool, error)
	GetMasterKey() (MasterKey, error)
	SetMasterKey(key MasterKey) error

	KeyContextStore
}

// KeyContextStore persists the PGP engine's key records.
type KeyContextStore interface {
	PutKeyRecord(id string, record []byte) error
	KeyRecords() (map[string][]byte, error)
}
