package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/walletperm/internal/permission"
	"github.com/opencode-ai/walletperm/pkg/types"
)

var (
	labelColor   = color.New(color.FgCyan, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
	grantColor   = color.New(color.FgGreen, color.Bold)
	denyColor    = color.New(color.FgRed, color.Bold)
	requestColor = color.New(color.FgYellow, color.Bold)
)

// writeStructured prints v as JSON or YAML. It reports false for text
// output so the caller renders its own view.
func writeStructured(w io.Writer, v any) (bool, error) {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		// Round-trip through JSON so the json tags name the YAML keys.
		data, err := json.Marshal(v)
		if err != nil {
			return true, err
		}
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return true, err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(generic)
	}
	return false, nil
}

// describeRequest is a one-line human summary of a permission request.
func describeRequest(r *types.PermissionRequest) string {
	if r == nil {
		return ""
	}
	var what string
	switch r.Type {
	case types.PermissionProtocol:
		p := r.Protocol
		what = fmt.Sprintf("protocol [%d,%q] with %s", p.ProtocolID.SecurityLevel, p.ProtocolID.Protocol, p.Counterparty)
		if p.Privileged {
			what += " (privileged)"
		}
	case types.PermissionBasket:
		what = fmt.Sprintf("basket %q", r.Basket.Basket)
	case types.PermissionCertificate:
		c := r.Certificate
		what = fmt.Sprintf("certificate %s fields [%s] for verifier %s", c.CertType, strings.Join(c.Fields, ", "), c.Verifier)
	case types.PermissionSpending:
		what = fmt.Sprintf("spend %d satoshis", r.Spending.Satoshis)
	default:
		what = string(r.Type)
	}
	if r.Renewal {
		what += " [renewal]"
	}
	if r.Reason != "" {
		what += ": " + r.Reason
	}
	return fmt.Sprintf("%s wants %s", r.Originator, what)
}

// describeGrouped summarizes a grouped request.
func describeGrouped(g *types.GroupedPermissionRequest) string {
	if g == nil {
		return ""
	}
	p := g.Permissions
	parts := []string{}
	if n := len(p.ProtocolPermissions); n > 0 {
		parts = append(parts, fmt.Sprintf("%d protocol", n))
	}
	if n := len(p.BasketAccess); n > 0 {
		parts = append(parts, fmt.Sprintf("%d basket", n))
	}
	if n := len(p.CertificateAccess); n > 0 {
		parts = append(parts, fmt.Sprintf("%d certificate", n))
	}
	if p.SpendingAuthorization != nil {
		parts = append(parts, fmt.Sprintf("spend %d satoshis/month", p.SpendingAuthorization.Amount))
	}
	desc := fmt.Sprintf("%s wants a group of permissions (%s)", g.Originator, strings.Join(parts, ", "))
	if p.Description != "" {
		desc += ": " + p.Description
	}
	return desc
}

func printPending(w io.Writer, pending []permission.PendingRequest) {
	if len(pending) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("No pending requests"))
		return
	}
	for _, p := range pending {
		summary := describeRequest(p.Request)
		if p.Grouped != nil {
			summary = describeGrouped(p.Grouped)
		}
		fmt.Fprintf(w, "%s %s\n", labelColor.Sprint(p.RequestID), summary)
		fmt.Fprintln(w, dimColor.Sprintf("  waiting: %d caller(s) since %s", p.Waiters, p.Created.Format(time.RFC3339)))
	}
}

func printTokens(w io.Writer, tokens []*types.PermissionToken) {
	if len(tokens) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("No tokens"))
		return
	}
	for _, t := range tokens {
		var what string
		switch {
		case t.Protocol != "":
			what = fmt.Sprintf("protocol [%d,%q] counterparty %s", t.SecurityLevel, t.Protocol, t.Counterparty)
		case t.BasketName != "":
			what = fmt.Sprintf("basket %q", t.BasketName)
		case t.CertType != "":
			what = fmt.Sprintf("certificate %s [%s] verifier %s", t.CertType, strings.Join(t.CertFields, ", "), t.Verifier)
		case t.AuthorizedAmount > 0:
			what = fmt.Sprintf("spending up to %d satoshis/month", t.AuthorizedAmount)
		}
		expiry := "never"
		if t.Expiry > 0 {
			expiry = time.Unix(t.Expiry, 0).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s %s %s\n", labelColor.Sprint(t.Outpoint()), t.Originator, what)
		fmt.Fprintln(w, dimColor.Sprintf("  expires: %s", expiry))
	}
}

func stderr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}
