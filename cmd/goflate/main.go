// Command goflate decompresses and inspects gzip/DEFLATE files.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/crypto/ssh/terminal"
	"golang.org/x/exp/mmap"
	"golang.org/x/sync/errgroup"

	"github.com/inflatekit/goflate/flate"
	"github.com/inflatekit/goflate/gzip"
	"github.com/inflatekit/goflate/ranger"
)

// CommonFlags are the decompression-tuning flags cat and gunzip share
// (inspect takes no flags).
type CommonFlags struct {
	Concurrency int   `subcmd:"concurrency,4,'number of files to decompress concurrently'"`
	MaxOutput   int64 `subcmd:"max-output,0,'abort with an error once decompressed output exceeds this many bytes (0 disables the limit)'"`
	Verbose     bool  `subcmd:"verbose,false,'verbose debug/trace information'"`
}

type catFlags struct {
	CommonFlags
}

type gunzipFlags struct {
	CommonFlags
	ProgressBar bool   `subcmd:"progress,true,'display a progress bar per file'"`
	OutputDir   string `subcmd:"output-dir,,'directory to write decompressed files to, defaults to alongside the input'"`
	Keep        bool   `subcmd:"keep,false,'keep the compressed input files instead of leaving them untouched (goflate never deletes input, this flag is reserved for a future --delete-input)'"`
}

type inspectFlags struct{}

var cmdSet *subcmd.CommandSet

func init() {
	defaults := map[string]interface{}{
		"concurrency": runtime.GOMAXPROCS(-1),
	}

	catCmd := subcmd.NewCommand("cat",
		subcmd.MustRegisterFlagStruct(&catFlags{}, defaults, nil),
		cat, subcmd.AtLeastNArguments(0))
	catCmd.Document(`decompress gzip files, or stdin, to stdout.`)

	gunzipCmd := subcmd.NewCommand("gunzip",
		subcmd.MustRegisterFlagStruct(&gunzipFlags{}, defaults, nil),
		gunzip, subcmd.AtLeastNArguments(1))
	gunzipCmd.Document(`decompress one or more gzip files in place, writing each member's payload alongside (or under --output-dir).`)

	inspectCmd := subcmd.NewCommand("inspect",
		subcmd.MustRegisterFlagStruct(&inspectFlags{}, nil, nil),
		inspect, subcmd.AtLeastNArguments(1))
	inspectCmd.Document(`print each gzip file's header fields without decompressing its payload.`)

	cmdSet = subcmd.NewCommandSet(catCmd, gunzipCmd, inspectCmd)
	cmdSet.Document(`decompress and inspect gzip/DEFLATE files.`)
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

func optsFromCommonFlags(cl *CommonFlags) []flate.Option {
	var opts []flate.Option
	if cl.MaxOutput > 0 {
		opts = append(opts, flate.WithMaxOutput(cl.MaxOutput))
	}
	return opts
}

// openInput returns an io.ReaderAt-backed reader for a local file using
// mmap (so RandomAccessReader-style consumers could reuse it without a
// second open), a ranger.Reader for an http(s):// URL (HTTP range
// requests in place of a local ReaderAt), or a plain os.File reader for
// "-"/stdin, which cannot be mapped.
func openInput(ctx context.Context, name string) (io.Reader, func() error, error) {
	if name == "-" || name == "" {
		return os.Stdin, func() error { return nil }, nil
	}
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		r, err := openHTTPRangeInput(ctx, name)
		return r, func() error { return nil }, err
	}
	ra, err := mmap.Open(name)
	if err != nil {
		return nil, nil, err
	}
	return io.NewSectionReader(ra, 0, int64(ra.Len())), ra.Close, nil
}

// openHTTPRangeInput wraps a ranger.Reader around a remote URL,
// probing its length with a HEAD request the way an io.SectionReader
// needs up front.
func openHTTPRangeInput(ctx context.Context, uri string) (io.Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: server did not report a usable Content-Length: %w", uri, err)
	}

	rr := ranger.New(ctx, uri, http.DefaultTransport)
	return io.NewSectionReader(rr, 0, size), nil
}

func cat(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*catFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	opts := optsFromCommonFlags(&cl.CommonFlags)

	if len(args) == 0 {
		z, err := gzip.NewReader(os.Stdin, opts...)
		if err != nil {
			return err
		}
		defer z.Close()
		_, err = io.Copy(os.Stdout, z)
		return err
	}

	// Sequential, not concurrent: concurrent writers into the shared
	// os.Stdout would interleave each file's bytes.
	for _, name := range args {
		if err := catOne(ctx, name, os.Stdout, opts); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func catOne(ctx context.Context, name string, w io.Writer, opts []flate.Option) error {
	r, closeInput, err := openInput(ctx, name)
	if err != nil {
		return err
	}
	defer closeInput()

	z, err := gzip.NewReader(r, opts...)
	if err != nil {
		return err
	}
	defer z.Close()

	_, err = io.Copy(w, z)
	return err
}

func gunzip(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*gunzipFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	opts := optsFromCommonFlags(&cl.CommonFlags)
	isTTY := terminal.IsTerminal(int(os.Stderr.Fd()))

	var g errgroup.Group
	g.SetLimit(cl.Concurrency)

	errs := &errors.M{}
	var mu sync.Mutex

	for _, name := range args {
		name := name
		g.Go(func() error {
			err := gunzipOne(ctx, name, cl, opts, isTTY)
			if err != nil {
				slog.Error("gunzipFailed", "file", name, "err", err)
				mu.Lock()
				errs.Append(fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			return nil // continue-on-error: don't let errgroup cancel siblings
		})
	}
	g.Wait()
	return errs.Err()
}

func gunzipOne(ctx context.Context, name string, cl *gunzipFlags, opts []flate.Option, isTTY bool) error {
	ra, err := mmap.Open(name)
	if err != nil {
		return err
	}
	defer ra.Close()

	outName := outputPath(name, cl.OutputDir)
	out, err := os.Create(outName)
	if err != nil {
		return err
	}
	defer out.Close()

	src := io.NewSectionReader(ra, 0, int64(ra.Len()))
	z, err := gzip.NewReader(src, opts...)
	if err != nil {
		return err
	}
	defer z.Close()

	var w io.Writer = out
	if cl.ProgressBar && isTTY {
		bar := progressbar.NewOptions64(int64(ra.Len()),
			progressbar.OptionSetBytes64(int64(ra.Len())),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetPredictTime(true))
		bar.RenderBlank()
		w = io.MultiWriter(out, bar)
		defer fmt.Fprintln(os.Stderr)
	}

	_, err = io.Copy(w, z)
	return err
}

// outputPath derives the decompressed file's name the way gunzip(1)
// does: strip a trailing .gz, or append .out if there is none.
func outputPath(name, outputDir string) string {
	base := name
	if strings.HasSuffix(base, ".gz") {
		base = strings.TrimSuffix(base, ".gz")
	} else {
		base += ".out"
	}
	if outputDir == "" {
		return base
	}
	return outputDir + "/" + path.Base(base)
}

func inspect(ctx context.Context, values interface{}, args []string) error {
	errs := &errors.M{}
	for _, name := range args {
		if err := inspectOne(name); err != nil {
			errs.Append(fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs.Err()
}

func inspectOne(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	z, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer z.Close()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  OS:      %d\n", z.Header.OS)
	if !z.Header.ModTime.IsZero() {
		fmt.Printf("  ModTime: %s\n", z.Header.ModTime)
	}
	if z.Header.Name != "" {
		fmt.Printf("  Name:    %s\n", z.Header.Name)
	}
	if z.Header.Comment != "" {
		fmt.Printf("  Comment: %s\n", z.Header.Comment)
	}
	if len(z.Header.Extra) > 0 {
		fmt.Printf("  Extra:   %d bytes\n", len(z.Header.Extra))
	}
	return nil
}
