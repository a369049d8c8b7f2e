package program

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/program-pinger/pkg/common"
)

const keypairSuffix = "-keypair.json"

var (
	// ErrArtifactNotFound indicates no keypair artifact exists for the program.
	ErrArtifactNotFound = errors.New("program: artifact not found")

	// ErrInvalidArtifact indicates the artifact exists but holds no valid keypair.
	ErrInvalidArtifact = errors.New("program: invalid artifact")
)

// Locator resolves program ids from the keypair artifacts written alongside a
// program build, named <name>-keypair.json.
type Locator struct {
	log *logrus.Entry
	dir string
}

func NewLocator(dir string) *Locator {
	return &Locator{
		log: logrus.StandardLogger().WithField("type", "program/locator"),
		dir: dir,
	}
}

// ArtifactPath returns where the keypair artifact for name is expected.
func (l *Locator) ArtifactPath(name string) string {
	return filepath.Join(l.dir, name+keypairSuffix)
}

// Resolve returns the program id for name. Only the public key is returned.
func (l *Locator) Resolve(name string) (*common.Account, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, errors.Wrapf(ErrArtifactNotFound, "invalid program name %q", name)
	}

	path := l.ArtifactPath(name)
	keypair, err := common.NewAccountFromKeygenFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrArtifactNotFound, path)
	} else if err != nil {
		return nil, errors.Wrapf(ErrInvalidArtifact, "%s: %v", path, err)
	}

	programID, err := common.NewAccountFromPublicKey(keypair.PublicKey())
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidArtifact, "%s: %v", path, err)
	}

	l.log.WithFields(logrus.Fields{
		"method":  "Resolve",
		"program": name,
		"id":      programID.String(),
	}).Debug("program resolved")

	return programID, nil
}
