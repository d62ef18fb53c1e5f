// keyinsert stores a file as a key in an OCI registry or layout directory
// and prints the key.
//
//	keyinsert --repo ghcr.io/myorg/keys --compression zstd ./report.pdf
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"oras.land/oras-go/v2"

	"github.com/meigma/keyutils/insert"
	"github.com/meigma/keyutils/internal/cli"
	"github.com/meigma/keyutils/key"
	"github.com/meigma/keyutils/metadata"
	"github.com/meigma/keyutils/oci"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	repo           string
	tag            string
	layout         string
	plainHTTP      bool
	anonymous      bool
	compression    string
	blockSize      int
	splitThreshold int64
	encrypt        bool
	topData        bool
	mimeType       string
	customKey      string
	archive        string
	annotations    map[string]string
	logLevel       string
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var o options
	flags := pflag.NewFlagSet("keyinsert", pflag.ContinueOnError)
	flags.StringVar(&o.repo, "repo", "", "target repository, registry/repository (required)")
	flags.StringVar(&o.tag, "tag", "", "also tag the key manifest")
	flags.StringVar(&o.layout, "layout", "", "write to OCI layout directories below this path instead of a registry")
	flags.BoolVar(&o.plainHTTP, "plain-http", false, "use plain HTTP for the registry")
	flags.BoolVar(&o.anonymous, "anonymous", false, "do not send registry credentials")
	flags.StringVar(&o.compression, "compression", "zstd", "splitfile compression: none, gzip, zstd or lz4")
	flags.IntVar(&o.blockSize, "block-size", insert.DefaultBlockSize, "splitfile block size in bytes")
	flags.Int64Var(&o.splitThreshold, "split-threshold", insert.DefaultSplitThreshold, "largest payload stored as a single layer")
	flags.BoolVar(&o.encrypt, "encrypt", true, "encrypt the top level layer")
	flags.BoolVar(&o.topData, "top-data", false, "record top block data in splitfile metadata")
	flags.StringVar(&o.mimeType, "mime", "", "MIME type recorded in the metadata")
	flags.StringVar(&o.customKey, "custom-key", "", "hex splitfile crypto key (32 bytes)")
	flags.StringVar(&o.archive, "archive", "", "store the file as an archive manifest: zip or tar")
	flags.StringToStringVar(&o.annotations, "annotation", nil, "manifest annotation key=value (repeatable)")
	flags.StringVar(&o.logLevel, "log-level", "warn", "debug, info, warn or error")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if o.repo == "" {
		return errors.New("--repo is required")
	}
	if flags.NArg() != 1 {
		return errors.New("expected exactly one file argument (- for stdin)")
	}

	data, err := readInput(flags.Arg(0), stdin)
	if err != nil {
		return err
	}
	logger, err := cli.NewLogger(os.Stderr, o.logLevel, "text")
	if err != nil {
		return err
	}

	k, err := o.insert(ctx, logger, data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, k.String())
	return err
}

func readInput(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

func (o *options) insert(ctx context.Context, logger *slog.Logger, data []byte) (key.Key, error) {
	codec, err := metadata.ParseCodec(o.compression)
	if err != nil {
		return key.Key{}, err
	}
	insertOpts := []insert.InsertOption{
		insert.WithCompression(codec),
		insert.WithEncryption(o.encrypt),
		insert.WithMIMEType(o.mimeType),
		insert.WithTag(o.tag),
	}
	if len(o.annotations) > 0 {
		insertOpts = append(insertOpts, insert.WithAnnotations(o.annotations))
	}
	if o.topData {
		insertOpts = append(insertOpts, insert.WithTopData())
	}
	if o.customKey != "" {
		ck, err := hex.DecodeString(o.customKey)
		if err != nil {
			return key.Key{}, fmt.Errorf("--custom-key: %w", err)
		}
		insertOpts = append(insertOpts, insert.WithCustomKey(ck))
	}

	target, digestTags, err := o.target()
	if err != nil {
		return key.Key{}, err
	}
	ins, err := insert.New(target, o.repo,
		insert.WithLogger(logger),
		insert.WithBlockSize(o.blockSize),
		insert.WithSplitThreshold(o.splitThreshold),
		insert.WithDigestTags(digestTags),
	)
	if err != nil {
		return key.Key{}, err
	}

	switch strings.ToLower(o.archive) {
	case "":
		return ins.Insert(ctx, data, insertOpts...)
	case "zip":
		return ins.InsertArchiveManifest(ctx, metadata.ArchiveZIP, data, insertOpts...)
	case "tar":
		return ins.InsertArchiveManifest(ctx, metadata.ArchiveTAR, data, insertOpts...)
	default:
		return key.Key{}, fmt.Errorf("--archive %q: expected zip or tar", o.archive)
	}
}

// target returns where keys are written and whether manifests need digest
// tags to be resolvable there.
func (o *options) target() (oras.Target, bool, error) {
	if o.layout != "" {
		t, err := oci.NewLayout(o.layout).Target(o.repo)
		return t, true, err
	}
	clientOpts := []oci.Option{oci.WithPlainHTTP(o.plainHTTP)}
	if o.anonymous {
		clientOpts = append(clientOpts, oci.WithAnonymous())
	} else {
		clientOpts = append(clientOpts, oci.WithDockerConfig())
	}
	t, err := oci.New(clientOpts...).Target(o.repo)
	return t, false, err
}
