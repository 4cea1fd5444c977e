package fingerprint

import (
	"context"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/holmes/blobstore"
)

const (
	controlPrefix = "control."
	controlSuffix = ".bam" + KeySuffix
)

// Control is a reference fingerprint kept in the config folder. Its key is
// not a URL encoding; Name is shown instead.
type Control struct {
	Key  string
	Name string
}

// ControlKey returns the key of the named control fingerprint.
func ControlKey(configFolder, name string) string {
	return configFolder + controlPrefix + name + controlSuffix
}

// Controls returns the control fingerprints in configFolder sorted by name.
func Controls(ctx context.Context, store blobstore.Store, configFolder string) ([]Control, error) {
	if !strings.HasSuffix(configFolder, "/") {
		return nil, errors.E(errors.Invalid, "config folder must end with a slash:", configFolder)
	}
	var (
		controls []Control
		token    string
	)
	for {
		page, err := store.List(ctx, configFolder+controlPrefix, token)
		if err != nil {
			return nil, errors.E(err, "list controls in", configFolder)
		}
		for _, e := range page.Entries {
			rest := strings.TrimPrefix(e.Key, configFolder+controlPrefix)
			if strings.Contains(rest, "/") || !strings.HasSuffix(rest, controlSuffix) {
				continue
			}
			name := strings.TrimSuffix(rest, controlSuffix)
			if name == "" {
				continue
			}
			controls = append(controls, Control{Key: e.Key, Name: name})
		}
		if page.Next == "" {
			break
		}
		token = page.Next
	}
	sort.Slice(controls, func(i, j int) bool { return controls[i].Name < controls[j].Name })
	return controls, nil
}
