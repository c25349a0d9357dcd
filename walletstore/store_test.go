package walletstore

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coldvault/coldvault/vaultcrypt"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

var (
	testTime     = time.Date(2009, time.January, 3, 12, 0, 0, 0, time.UTC)
	testPassword = []byte("correct horse battery staple")
)

func newTestStore(t *testing.T) (*Store, *clock.TestClock) {
	t.Helper()

	testClock := clock.NewTestClock(testTime)
	store := New(Config{
		Root: filepath.Join(t.TempDir(), "vault"),
		Crypter: &vaultcrypt.Crypter{
			Cipher:     vaultcrypt.CipherAESCBC,
			Iterations: vaultcrypt.FastIterations,
		},
		Clock: testClock,
	})

	return store, testClock
}

func testWallets() []*Wallet {
	return []*Wallet{
		{
			ID:            "wallet_1_00",
			Name:          "savings",
			EncryptedSeed: "c2VlZA==",
			Addresses: []Address{{
				Address:        "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA",
				DerivationPath: "m/44'/0'/0'/0/0",
				PublicKey:      "03aa",
				Balance:        1500,
				Used:           true,
				Currency:       "BTC",
			}},
			CreatedAt: testTime,
			LastUsed:  testTime.Add(time.Hour),
		},
		{
			ID:        "wallet_2_01",
			Name:      "<spending & more>",
			Addresses: []Address{},
			CreatedAt: testTime,
			LastUsed:  testTime,
		},
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	require.False(t, store.HasWalletData())
	size, err := store.WalletFileSize()
	require.NoError(t, err)
	require.Zero(t, size)

	wallets := testWallets()
	require.NoError(t, store.Save(wallets, testPassword))

	loaded, err := store.Load(testPassword)
	require.NoError(t, err)
	require.Equal(t, wallets, loaded)

	require.True(t, store.HasWalletData())
	size, err = store.WalletFileSize()
	require.NoError(t, err)
	require.Positive(t, size)

	// Permissions are owner only and no temp file is left behind.
	info, err := os.Stat(filepath.Join(store.Root(), WalletFileName))
	require.NoError(t, err)
	require.Equal(t, filePerm, info.Mode().Perm())

	info, err = os.Stat(store.Root())
	require.NoError(t, err)
	require.Equal(t, dirPerm, info.Mode().Perm())

	info, err = os.Stat(store.BackupDir())
	require.NoError(t, err)
	require.Equal(t, dirPerm, info.Mode().Perm())

	_, err = os.Stat(filepath.Join(store.Root(), TempWalletFileName))
	require.ErrorIs(t, err, fs.ErrNotExist)

	// Saving again replaces the collection.
	require.NoError(t, store.Save(wallets[:1], testPassword))
	loaded, err = store.Load(testPassword)
	require.NoError(t, err)
	require.Equal(t, wallets[:1], loaded)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	wallets, err := store.Load(testPassword)
	require.NoError(t, err)
	require.NotNil(t, wallets)
	require.Empty(t, wallets)
}

func TestLoadWrongPassword(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Save(testWallets(), testPassword))

	_, err := store.Load([]byte("wrong"))
	require.ErrorIs(t, err, ErrInvalidPassword)

	// A damaged file is reported the same way.
	path := filepath.Join(store.Root(), WalletFileName)
	require.NoError(t, os.WriteFile(path, []byte("garbage"), filePerm))

	_, err = store.Load(testPassword)
	require.ErrorIs(t, err, ErrInvalidPassword)
}

// TestSaveFailureKeepsTempClean makes the final rename fail and checks the
// error is a StorageError and the temp file is cleaned up.
func TestSaveFailureKeepsTempClean(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())

	// A non-empty directory in place of the wallet file can't be
	// renamed over.
	walletPath := filepath.Join(store.Root(), WalletFileName)
	require.NoError(t, os.MkdirAll(filepath.Join(walletPath, "x"), 0o700))

	err := store.Save(testWallets(), testPassword)
	require.Error(t, err)

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	require.Equal(t, "save", storageErr.Op)

	_, err = os.Stat(filepath.Join(store.Root(), TempWalletFileName))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestStaleTempFileRemoved(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())

	tempPath := filepath.Join(store.Root(), TempWalletFileName)
	require.NoError(t, os.WriteFile(tempPath, []byte("stale"), filePerm))

	require.NoError(t, store.Save(testWallets(), testPassword))

	_, err := os.Stat(tempPath)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDeleteWalletData(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	// Nothing to delete is fine.
	require.NoError(t, store.DeleteWalletData())

	require.NoError(t, store.Save(testWallets(), testPassword))
	require.True(t, store.HasWalletData())

	require.NoError(t, store.DeleteWalletData())
	require.False(t, store.HasWalletData())

	wallets, err := store.Load(testPassword)
	require.NoError(t, err)
	require.Empty(t, wallets)
}

func TestMinFreeDiskRatio(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	// No volume is ever more than completely free.
	store.cfg.MinFreeDiskRatio = 1.5

	err := store.Save(testWallets(), testPassword)
	require.ErrorIs(t, err, ErrLowDiskSpace)

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	require.False(t, store.HasWalletData())
}

func TestBackupRoundTrip(t *testing.T) {
	t.Parallel()

	store, testClock := newTestStore(t)
	wallets := testWallets()

	path, err := store.CreateBackup(wallets, testPassword)
	require.NoError(t, err)
	require.Equal(
		t, filepath.Join(
			store.BackupDir(),
			"wallet-backup-2009-01-03T12-00-00-000Z.bak",
		), path,
	)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, filePerm, info.Mode().Perm())

	restored, err := store.RestoreFromBackup(path, testPassword)
	require.NoError(t, err)
	require.Equal(t, wallets, restored)

	// Restoring leaves persisted state alone.
	require.False(t, store.HasWalletData())

	_, err = store.RestoreFromBackup(path, []byte("wrong"))
	require.ErrorIs(t, err, ErrInvalidPassword)

	// A second backup within the same millisecond must not overwrite
	// the first.
	_, err = store.CreateBackup(nil, testPassword)
	require.ErrorIs(t, err, ErrBackupExists)

	restored, err = store.RestoreFromBackup(path, testPassword)
	require.NoError(t, err)
	require.Len(t, restored, 2)

	testClock.SetTime(testTime.Add(1500 * time.Millisecond))
	second, err := store.CreateBackup(nil, testPassword)
	require.NoError(t, err)

	restored, err = store.RestoreFromBackup(second, testPassword)
	require.NoError(t, err)
	require.Empty(t, restored)

	// Unrelated files are ignored and the newest backup comes first.
	require.NoError(t, os.WriteFile(
		filepath.Join(store.BackupDir(), "notes.txt"), nil, filePerm,
	))

	names, err := store.ListBackups()
	require.NoError(t, err)
	require.Equal(t, []string{
		"wallet-backup-2009-01-03T12-00-01-500Z.bak",
		"wallet-backup-2009-01-03T12-00-00-000Z.bak",
	}, names)
	require.Equal(t, second, store.BackupPath(names[0]))
}

func TestRestoreCorruptedBackup(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Initialize())

	walletsJSON, err := json.Marshal(testWallets())
	require.NoError(t, err)

	snapshot, err := json.Marshal(&BackupSnapshot{
		Wallets:   walletsJSON,
		Version:   BackupVersion,
		Timestamp: testTime,
		Checksum:  vaultcrypt.Checksum([]byte("something else")),
	})
	require.NoError(t, err)

	encoded, err := store.cfg.Crypter.EncryptString(snapshot, testPassword)
	require.NoError(t, err)

	path := filepath.Join(store.BackupDir(), "tampered.bak")
	require.NoError(t, os.WriteFile(path, []byte(encoded), filePerm))

	_, err = store.RestoreFromBackup(path, testPassword)
	require.ErrorIs(t, err, ErrCorruptedBackup)
}

func TestRestoreMissingBackup(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	_, err := store.RestoreFromBackup(
		filepath.Join(store.BackupDir(), "nope.bak"), testPassword,
	)
	require.ErrorIs(t, err, fs.ErrNotExist)

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	require.Equal(t, "restore", storageErr.Op)
}

func TestListBackupsMissingDir(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	names, err := store.ListBackups()
	require.NoError(t, err)
	require.Empty(t, names)
}
