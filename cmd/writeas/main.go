package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonardcser/writeas-mcp/internal/archive"
	"github.com/leonardcser/writeas-mcp/internal/config"
	"github.com/leonardcser/writeas-mcp/internal/logger"
	"github.com/leonardcser/writeas-mcp/internal/web"
	"github.com/leonardcser/writeas-mcp/internal/writeas"
)

const usage = `USAGE: writeas [options] operation [arguments]

OPTIONS:
   -h|--help           Show command line help.
   -v|--version        Display version.

OPERATIONS:
    GetAllPosts <alias> [sortorder]
    GetPostsByPageNumber <alias> <pagenumber> [sortorder]
    GetPostBySlug <alias> <slug>
    GetPostById <id>
    Search <alias> <searchKey...>
    GenerateArchivePageMarkdown <alias> <filename> [sortorder]

SORTORDER-options:
    ascending
    descending
`

// source is the part of *writeas.Client the console uses.
type source interface {
	GetAllPosts(ctx context.Context, alias string, order writeas.SortOrder) ([]writeas.Post, error)
	GetPostsByPageNumber(ctx context.Context, alias string, page int, order writeas.SortOrder, saveToCache bool) ([]writeas.Post, error)
	GetPostBySlug(ctx context.Context, alias, slug string) (*writeas.Post, error)
	GetPostByID(ctx context.Context, id string) (*writeas.Post, error)
	Search(ctx context.Context, alias, key string, order writeas.SortOrder) ([]writeas.Post, error)
}

func main() {
	os.Exit(start())
}

func start() int {
	if err := logger.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
	}
	defer logger.Close()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	client, err := web.NewClient(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		return 1
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &console{out: os.Stdout, src: client, cfg: cfg}
	return app.run(ctx, os.Args[1:])
}

type console struct {
	out io.Writer
	src source
	cfg *config.Config
	now func() time.Time
}

// opError marks a failure inside an operation, as opposed to a command line
// that could not be parsed.
type opError struct{ err error }

func (e *opError) Error() string { return e.err.Error() }
func (e *opError) Unwrap() error { return e.err }

func init() {
	cobra.EnableCaseInsensitive = true
}

// run executes one operation and returns the process exit code.
func (c *console) run(ctx context.Context, args []string) int {
	if args == nil {
		args = []string{}
	}
	root := c.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	var opErr *opError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &opErr):
		logger.Errorf("%s failed: %v", args[0], opErr.err)
		fmt.Fprintf(c.out, "\nError: %v\n", opErr.err)
		return 1
	default:
		logger.Warnf("cannot process %q: %v", args, err)
		fmt.Fprintln(c.out, "Cannot process command...")
		fmt.Fprint(c.out, usage)
		return 2
	}
}

func (c *console) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "writeas",
		Short:             "Read posts from a write.as collection",
		Version:           config.Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	root.SetOut(c.out)
	root.SetErr(c.out)
	root.SetVersionTemplate("writeas version {{.Version}}\n")
	root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		fmt.Fprint(cmd.OutOrStdout(), usage)
	})

	root.AddCommand(
		&cobra.Command{
			Use:  "GetAllPosts <alias> [sortorder]",
			Args: cobra.RangeArgs(1, 2),
			RunE: c.op(c.getAllPosts),
		},
		&cobra.Command{
			Use:  "GetPostsByPageNumber <alias> <pagenumber> [sortorder]",
			Args: cobra.RangeArgs(1, 3),
			RunE: c.op(c.getPostsByPageNumber),
		},
		&cobra.Command{
			Use:  "GetPostBySlug <alias> <slug>",
			Args: cobra.ExactArgs(2),
			RunE: c.op(c.getPostBySlug),
		},
		&cobra.Command{
			Use:  "GetPostById <id>",
			Args: cobra.ExactArgs(1),
			RunE: c.op(c.getPostByID),
		},
		&cobra.Command{
			Use:  "Search <alias> <searchKey...>",
			Args: cobra.MinimumNArgs(1),
			RunE: c.op(c.search),
		},
		&cobra.Command{
			Use:  "GenerateArchivePageMarkdown <alias> <filename> [sortorder]",
			Args: cobra.RangeArgs(2, 3),
			RunE: c.op(c.generateArchive),
		},
	)
	return root
}

// op adapts an operation to cobra, tagging its errors as operation failures.
func (c *console) op(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd.Context(), args); err != nil {
			return &opError{err: err}
		}
		return nil
	}
}

func (c *console) getAllPosts(ctx context.Context, args []string) error {
	order := c.sortArg(args, 1)
	c.header("GetAllPosts", "ALIAS", args[0], "SORTORDER", order.String())
	posts, err := c.src.GetAllPosts(ctx, args[0], order)
	if err != nil {
		return err
	}
	c.list(posts)
	return nil
}

func (c *console) getPostsByPageNumber(ctx context.Context, args []string) error {
	page := c.pageArg(args, 1)
	order := c.sortArg(args, 2)
	c.header("GetPostsByPageNumber", "ALIAS", args[0], "PAGENUMBER", strconv.Itoa(page), "SORTORDER", order.String())
	posts, err := c.src.GetPostsByPageNumber(ctx, args[0], page, order, false)
	if err != nil {
		return err
	}
	c.list(posts)
	return nil
}

func (c *console) getPostBySlug(ctx context.Context, args []string) error {
	c.header("GetPostBySlug", "ALIAS", args[0], "SLUG", args[1])
	p, err := c.src.GetPostBySlug(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Fprintf(c.out, "Cannot find post with slug %s\n", args[1])
		return nil
	}
	c.list([]writeas.Post{*p})
	return nil
}

func (c *console) getPostByID(ctx context.Context, args []string) error {
	c.header("GetPostById", "POSTID", args[0])
	p, err := c.src.GetPostByID(ctx, args[0])
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Fprintf(c.out, "\nResult: Cannot find post with ID %s\n", args[0])
		return nil
	}
	fmt.Fprintf(c.out, "\nResult:\n%s\n", line(*p))
	return nil
}

func (c *console) search(ctx context.Context, args []string) error {
	key := strings.Join(args[1:], " ")
	c.header("Search", "ALIAS", args[0], "SEARCHKEY", key)
	posts, err := c.src.Search(ctx, args[0], key, writeas.Descending)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Fprintf(c.out, "\nResult: Could not find any post with searchKey %s\n", key)
		return nil
	}
	c.list(posts)
	return nil
}

func (c *console) generateArchive(ctx context.Context, args []string) error {
	alias, name := args[0], args[1]
	order := c.sortArg(args, 2)
	c.header("GenerateArchivePageMarkdown", "ALIAS", alias, "FILENAME", name, "SORTORDER", order.String())
	posts, err := c.src.GetAllPosts(ctx, alias, order)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Fprintf(c.out, "No posts found for %s, nothing saved.\n", alias)
		return nil
	}
	page := archive.Page{
		PostURL: func(p writeas.Post) string { return c.cfg.PostURL(alias, p.Slug) },
		Now:     c.now,
	}
	path, err := page.WriteFile(c.cfg.OutputDir, name, posts)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Saved markdown text to %s\n", path)
	return nil
}

// header prints the operation name followed by NAME: value pairs.
func (c *console) header(op string, kv ...string) {
	fmt.Fprintf(c.out, "OPERATION: %s\n", op)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(c.out, "%s: %s\n", kv[i], kv[i+1])
	}
}

func (c *console) list(posts []writeas.Post) {
	for _, p := range posts {
		fmt.Fprintln(c.out, line(p))
	}
}

func (c *console) pageArg(args []string, i int) int {
	if i < len(args) {
		if n, err := strconv.Atoi(args[i]); err == nil {
			return n
		}
	}
	fmt.Fprintln(c.out, "Cannot parse PageNumber parameter value, so returning default value of 1")
	return 1
}

func (c *console) sortArg(args []string, i int) writeas.SortOrder {
	if i < len(args) {
		return writeas.ParseSortOrder(args[i])
	}
	return writeas.Descending
}

func line(p writeas.Post) string {
	return fmt.Sprintf("%s: %s", p.Created.Format(time.DateOnly), p.DisplayTitle())
}
