package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/justsurfingit/elevate-tracker/internal/auth"
	"github.com/justsurfingit/elevate-tracker/internal/config"
	"github.com/justsurfingit/elevate-tracker/internal/models"
	"github.com/justsurfingit/elevate-tracker/internal/tracker"
)

const usage = `usage: jobtracker [global flags] <command> [flags]

commands:
  list        show applications (-search, -status, -sort, -order)
  add         create an application (-company, -position, -location, ...)
  move        change status: move <id> <status>
  rm          delete: rm <id>
  gmail-auth  authorize the inbox watcher and cache its token

global flags:
`

func main() {
	var (
		apiURL  = flag.String("api", envOr("ELEVATE_API_URL", "http://localhost:8080"), "job applications API base URL")
		email   = flag.String("email", os.Getenv("ELEVATE_EMAIL"), "account email")
		idToken = flag.String("token", os.Getenv("ELEVATE_ID_TOKEN"), "Google id_token sent as bearer")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "gmail-auth" {
		if err := gmailAuth(ctx, log); err != nil {
			log.WithError(err).Fatal("gmail-auth failed")
		}
		return
	}

	session := &auth.Session{State: auth.StateAuthenticated, Email: *email, IDToken: *idToken}
	if *email == "" {
		session = auth.Unauthenticated()
	}
	store := tracker.NewStore(tracker.NewHTTPRemote(*apiURL, &http.Client{Timeout: 30 * time.Second}), session, tracker.WithLogger(log))

	if err := run(ctx, store, cmd, args, os.Stdout); err != nil {
		if errors.Is(err, tracker.ErrUnauthenticated) {
			fmt.Fprintln(os.Stderr, "not signed in: set -email or ELEVATE_EMAIL")
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, store *tracker.Store, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "list":
		return list(ctx, store, args, out)
	case "add":
		return add(ctx, store, args, out)
	case "move":
		if len(args) != 2 {
			return errors.New("usage: move <id> <status>")
		}
		if err := store.Load(ctx); err != nil {
			return err
		}
		status := models.Status(args[1])
		if !models.ValidStatus(status) {
			return fmt.Errorf("unknown status %q", args[1])
		}
		app, err := store.Move(ctx, args[0], status)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s @ %s -> %s\n", app.ID, app.Position, app.Company, app.Status)
		return nil
	case "rm":
		if len(args) != 1 {
			return errors.New("usage: rm <id>")
		}
		if err := store.Load(ctx); err != nil {
			return err
		}
		if err := store.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", args[0])
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func list(ctx context.Context, store *tracker.Store, args []string, out io.Writer) error {
	def := tracker.DefaultQuery()
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	search := fs.String("search", "", "case-insensitive match on company, position or location")
	status := fs.String("status", def.Status, "status filter or 'all'")
	sortBy := fs.String("sort", def.SortBy, "field to sort by")
	order := fs.String("order", def.Order, "asc or desc")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := store.Load(ctx); err != nil {
		return err
	}
	apps := store.FilterAndSort(tracker.Query{Search: *search, Status: *status, SortBy: *sortBy, Order: *order})
	printTable(out, apps)
	return nil
}

func add(ctx context.Context, store *tracker.Store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	company := fs.String("company", "", "company name (required)")
	position := fs.String("position", "", "position (required)")
	location := fs.String("location", "", "location (required)")
	workType := fs.String("work-type", string(models.WorkRemote), "remote, hybrid or onsite")
	status := fs.String("status", string(models.StatusApplied), "initial status")
	priority := fs.String("priority", string(models.PriorityMedium), "low, medium or high")
	salary := fs.String("salary", "", "salary range")
	jobURL := fs.String("url", "", "posting URL")
	notes := fs.String("notes", "", "free-form notes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := store.Create(ctx, models.JobApplication{
		Company:  *company,
		Position: *position,
		Location: *location,
		WorkType: models.WorkType(*workType),
		Status:   models.Status(*status),
		Priority: models.Priority(*priority),
		Salary:   *salary,
		JobURL:   *jobURL,
		Notes:    *notes,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created %s\n", app.ID)
	return nil
}

func printTable(out io.Writer, apps []models.JobApplication) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMPANY\tPOSITION\tLOCATION\tSTATUS\tPRIORITY\tAPPLIED")
	for _, a := range apps {
		applied := a.ApplicationDate
		if len(applied) >= 10 {
			applied = applied[:10]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Company, a.Position, a.Location, a.Status, a.Priority, applied)
	}
	tw.Flush()
	fmt.Fprintf(out, "%d application(s)\n", len(apps))
}

func gmailAuth(ctx context.Context, log logrus.FieldLogger) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}
	if _, err := auth.GmailClient(ctx, cfg, os.Stdin, os.Stdout, log); err != nil {
		return err
	}
	fmt.Printf("gmail token cached at %s\n", strings.TrimSpace(cfg.Gmail.TokenFile))
	return nil
}
