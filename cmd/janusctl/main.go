// janusctl drives the Janus admin API: list and inspect access records,
// toggle access, upsert or delete records and run a lifecycle sweep.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usage = `usage: janusctl [flags] <command> [args]

commands:
  list                        list every access record
  get <id>                    show one record
  check <id>                  ask whether a caller may access storage
  allow [--all] <id>...       grant access
  disallow [--all] <id>...    revoke access
  upsert --id ID [--old-id ID] [--name NAME] [--allow]
  delete <id>...              delete records
  sweep [--grace N]           run a lifecycle sweep now
  audit [--caller ID] [--limit N]

flags:
`

func run(args []string, stdout, stderr io.Writer) error {
	var (
		addr    string
		timeout time.Duration
		all     bool
		grace   int
		id      string
		oldID   string
		name    string
		allow   bool
		caller  string
		limit   int
		asJSON  bool
	)

	defAddr := os.Getenv("JANUS_ADDR")
	if defAddr == "" {
		defAddr = "http://localhost:8080"
	}

	fs := pflag.NewFlagSet("janusctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&addr, "addr", defAddr, "admin API base URL (env JANUS_ADDR)")
	fs.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	fs.BoolVar(&all, "all", false, "apply allow/disallow to every record")
	fs.IntVar(&grace, "grace", 0, "sweep grace days; unset uses the server setting, <0 disables")
	fs.StringVar(&id, "id", "", "record id for upsert")
	fs.StringVar(&oldID, "old-id", "", "previous id when rekeying")
	fs.StringVar(&name, "name", "", "display name for upsert")
	fs.BoolVar(&allow, "allow", false, "allow access on upsert")
	fs.StringVar(&caller, "caller", "", "filter audit events by caller id")
	fs.IntVar(&limit, "limit", 50, "max audit events")
	fs.BoolVar(&asJSON, "json", false, "print raw JSON")
	fs.BoolP("help", "h", false, "show help")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := fs.GetBool("help"); help {
		fs.Usage()
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("command required")
	}
	cmd, operands := rest[0], rest[1:]

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	c := newClient(addr)

	var (
		out any
		err error
	)
	switch cmd {
	case "list":
		var resp types.ListResponse
		err = c.do(ctx, "GET", "/v1/extensions", nil, &resp)
		if err == nil && !asJSON {
			return printRecords(stdout, resp.Records)
		}
		out = resp

	case "get":
		if len(operands) != 1 {
			return errors.New("get takes exactly one id")
		}
		var resp types.RecordResponse
		err = c.do(ctx, "GET", "/v1/extensions/"+escape(operands[0]), nil, &resp)
		out = resp

	case "check":
		if len(operands) != 1 {
			return errors.New("check takes exactly one id")
		}
		var resp types.AccessCheckResponse
		err = c.do(ctx, "GET", "/v1/access/"+escape(operands[0]), nil, &resp)
		if err == nil && !asJSON {
			verdict := "deny"
			if resp.AllowAccess {
				verdict = "allow"
			}
			fmt.Fprintf(stdout, "%s\t%s\n", resp.ID, verdict)
			return nil
		}
		out = resp

	case "allow", "disallow":
		out, err = c.setAccess(ctx, cmd, all, operands)

	case "upsert":
		if id == "" {
			return errors.New("upsert requires --id")
		}
		var resp types.RecordResponse
		err = c.do(ctx, "PUT", "/v1/extensions", types.UpsertRequest{
			OldID: oldID, ID: id, Name: name, AllowAccess: allow,
		}, &resp)
		out = resp

	case "delete":
		out, err = c.deleteRecords(ctx, operands)

	case "sweep":
		var body types.SweepRequest
		if fs.Changed("grace") {
			body.GraceDays = &grace
		}
		var resp types.SweepResponse
		err = c.do(ctx, "POST", "/v1/sweep", body, &resp)
		out = resp

	case "audit":
		var resp types.AuditResponse
		path := fmt.Sprintf("/v1/audit?limit=%d", limit)
		if caller != "" {
			path += "&caller_id=" + url.QueryEscape(caller)
		}
		err = c.do(ctx, "GET", path, nil, &resp)
		out = resp

	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}
	return printJSON(stdout, out)
}

func printRecords(w io.Writer, recs []types.AccessRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tALLOW\tINSTALLED\tUNINSTALLED\tLOCKED")
	for _, r := range recs {
		since := "-"
		if r.UninstalledTimeMS != nil {
			since = time.UnixMilli(*r.UninstalledTimeMS).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\t%t\n", r.ID, r.Name, r.AllowAccess, r.Installed, since, r.Locked)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func trimIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
