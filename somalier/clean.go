package somalier

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

var (
	fingerprintFileRE = regexp.MustCompile(`\.somalier$`)
	reportFileRE      = regexp.MustCompile(`^somalier.*\.(tsv|html)$`)
)

// Clean removes fingerprints and relate reports from dir, leaving anything
// else alone. Scratch directories may be reused by later runs, and somalier
// relates every *.somalier file it is given.
func Clean(dir string) error {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.E(err, "clean", dir)
	}
	var firstErr error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !fingerprintFileRE.MatchString(name) && !reportFileRE.MatchString(name) {
			continue
		}
		log.Debug.Printf("removing %s from %s", name, dir)
		if err := os.Remove(filepath.Join(dir, name)); err != nil && firstErr == nil {
			firstErr = errors.E(err, "clean", dir)
		}
	}
	return firstErr
}
