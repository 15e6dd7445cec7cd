package nft

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Ledger is the append-only list of deployed collection addresses, one per line.
type Ledger struct {
	Path string
	mu   sync.Mutex
}

func NewLedger(path string) *Ledger { return &Ledger{Path: path} }

func (l *Ledger) Append(addr common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", l.Path)
	}
	if _, err := f.WriteString(addr.Hex() + "\n"); err != nil {
		f.Close()
		return errors.Wrapf(err, "append %s", l.Path)
	}
	return f.Close()
}

// List returns recorded addresses in file order. A missing file is empty.
func (l *Ledger) List() ([]common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", l.Path)
	}
	defer f.Close()

	var out []common.Address
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); common.IsHexAddress(s) {
			out = append(out, common.HexToAddress(s))
		}
	}
	return out, errors.Wrapf(sc.Err(), "read %s", l.Path)
}

// Last returns the most recent deployment, used as the default contract prompt.
func (l *Ledger) Last() (common.Address, bool) {
	all, err := l.List()
	if err != nil || len(all) == 0 {
		return common.Address{}, false
	}
	return all[len(all)-1], true
}
