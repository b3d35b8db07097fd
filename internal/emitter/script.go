package emitter

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/HerbHall/netscope/internal/slug"
	"github.com/HerbHall/netscope/pkg/models"
)

var safeShellWord = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// shellQuote returns s as a single bash word.
func shellQuote(s string) string {
	if s != "" && safeShellWord.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func shellArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

var scriptTmpl = template.Must(template.New("plan").Funcs(template.FuncMap{
	"q":      shellQuote,
	"line":   oneLine,
	"args":   shellArgs,
	"stamp":  slug.Stamp,
	"add":    func(a, b int) int { return a + b },
	"banner": func() string { return models.UnauthorizedBanner },
	"rest":   func(ph []models.ScanPhase) []models.ScanPhase { return ph[1:] },
}).Parse(`#!/usr/bin/env bash
# Scan plan for {{line .Customer}}
# engagement: {{line .EngagementID}}
# created:    {{stamp .CreatedAt}} UTC
# scan type:  {{line (print .ScanType)}} ({{line (print .Timing)}})
{{- if .Unauthorized}}
#
# {{banner}}
{{- end}}
{{- range .AdditionalNetworks}}
# additional network (not scanned by this plan): {{line .}}
{{- end}}
#
# Every step runs even if an earlier one fails. The exit status is non-zero
# when any step failed.

set -u
cd "$(dirname "$0")" || exit 1

SCANNER="${SCANNER:-{{q .ScannerPath}}}"
status=0
{{- if .Unauthorized}}

echo {{q banner}} >&2
{{- end}}

run_phase() {
	local label="$1"
	shift
	echo "[netscope] ${label}"
	if ! "$SCANNER" "$@"; then
		echo "[netscope] ${label} failed" >&2
		return 1
	fi
}

# live_hosts XML OUT writes the addresses reported up in XML to OUT.
live_hosts() {
	: >"$2"
	[ -f "$1" ] || return 0
	awk '
		/<hosthint>/ { hint = 1 }
		/<\/hosthint>/ { hint = 0; next }
		hint { next }
		/<host[ >]/ { up = 0 }
		/<status state="up"/ { up = 1 }
		up && /addrtype="ipv4"/ && match($0, /addr="[0-9.]+"/) {
			print substr($0, RSTART + 6, RLENGTH - 7)
			up = 0
		}
	' "$1" >"$2"
}
{{- $total := len .Steps}}
{{range $i, $step := .Steps}}
# step {{add $i 1}}/{{$total}}: {{line $step.SegmentLabel}} {{line $step.CIDR}}
step_failed=0
{{- with index $step.Phases 0}}
run_phase {{q (printf "%s %s" $step.SegmentLabel .Name)}} {{args .Args}} || step_failed=1
{{- end}}
{{- if gt (len $step.Phases) 1}}
live_hosts {{q (index $step.Phases 0).OutputFile}} {{q $step.LiveHostsFile}}
if [ -s {{q $step.LiveHostsFile}} ]; then
{{- range rest $step.Phases}}
	run_phase {{q (printf "%s %s" $step.SegmentLabel .Name)}} {{args .Args}} || step_failed=1
{{- end}}
else
	echo {{q (printf "[netscope] %s: no live hosts, skipping remaining phases" $step.SegmentLabel)}}
fi
{{- end}}
status=$((status | step_failed))
{{end}}
exit "$status"
`))

// RenderScript renders plan as an executable bash script. Output depends
// only on plan.
func RenderScript(plan *models.ScanPlan) ([]byte, error) {
	var buf bytes.Buffer
	if err := scriptTmpl.Execute(&buf, plan); err != nil {
		return nil, fmt.Errorf("render scan script: %w", err)
	}
	return buf.Bytes(), nil
}
