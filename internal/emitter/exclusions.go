package emitter

import (
	"bytes"
	"strings"

	"github.com/HerbHall/netscope/pkg/models"
)

// ExclusionList renders the scanner skip-list: one target per line with its
// reason as a trailing comment. An authorized profile with no exclusions
// yields empty content; unauthorized profiles always start with the banner
// as a comment line.
func ExclusionList(p *models.NetworkProfile) []byte {
	var buf bytes.Buffer
	if !p.Authorized() {
		buf.WriteString("# " + models.UnauthorizedBanner + "\n")
	}
	for _, e := range p.Exclusions {
		buf.WriteString(e.Target)
		if reason := oneLine(e.Reason); reason != "" {
			buf.WriteString(" # ")
			buf.WriteString(reason)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
