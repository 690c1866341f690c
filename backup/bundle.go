package backup

import (
	"regexp"
	"strings"
)

// Bundle file extensions, one per role.
const (
	PublicKeyExt = ".pub"
	SignatureExt = ".sig"
	BackupExt    = ".backup"
	cidExt       = ".cid"
)

var fingerprintPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// File is one uploaded file.
type File struct {
	Name string
	Data []byte
}

// Bundle is a resolved three-file backup bundle.
type Bundle struct {
	Fingerprint string
	PublicKey   []byte
	Signature   []byte
	Data        []byte
}

// PublicKeyName is the object name of the registered public key.
func PublicKeyName(fingerprint string) string { return fingerprint + PublicKeyExt }

// SignatureName is the object name of the detached signature.
func SignatureName(fingerprint string) string { return fingerprint + SignatureExt }

// BackupName is the object name of the backup data.
func BackupName(fingerprint string) string { return fingerprint + BackupExt }

func cidName(fingerprint string) string { return fingerprint + cidExt }

// Files returns the bundle in upload order: public key, signature, backup.
func (b *Bundle) Files() []File {
	return []File{
		{Name: PublicKeyName(b.Fingerprint), Data: b.PublicKey},
		{Name: SignatureName(b.Fingerprint), Data: b.Signature},
		{Name: BackupName(b.Fingerprint), Data: b.Data},
	}
}

// ResolveBundle assigns the files their roles by extension. It fails unless
// there are exactly three files, one per role, all named after the same valid
// fingerprint.
func ResolveBundle(files []File) (*Bundle, bool) {
	if len(files) != 3 {
		return nil, false
	}

	b := &Bundle{}
	seen := map[string]bool{}
	for _, f := range files {
		ext, stem, ok := splitName(f.Name)
		if !ok || seen[ext] {
			return nil, false
		}
		seen[ext] = true

		if b.Fingerprint == "" {
			b.Fingerprint = stem
		} else if b.Fingerprint != stem {
			return nil, false
		}

		switch ext {
		case PublicKeyExt:
			b.PublicKey = f.Data
		case SignatureExt:
			b.Signature = f.Data
		case BackupExt:
			b.Data = f.Data
		}
	}
	return b, true
}

// ValidFingerprint reports whether s can name a bundle.
func ValidFingerprint(s string) bool {
	return fingerprintPattern.MatchString(s)
}

func splitName(name string) (ext, stem string, ok bool) {
	for _, ext := range []string{PublicKeyExt, SignatureExt, BackupExt} {
		if stem, found := strings.CutSuffix(name, ext); found && ValidFingerprint(stem) {
			return ext, stem, true
		}
	}
	return "", "", false
}

// ValidObjectName reports whether name is a bundle file or content identifier
// record name that may be downloaded.
func ValidObjectName(name string) bool {
	if _, _, ok := splitName(name); ok {
		return true
	}
	stem, found := strings.CutSuffix(name, cidExt)
	return found && ValidFingerprint(stem)
}
