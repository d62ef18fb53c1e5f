// Package keyutils serves a key explorer for content stored as keys in OCI
// registries.
//
// A key names one OCI manifest with a single layer, optionally followed by
// the hex crypto key that decrypts it:
//
//	ghcr.io/myorg/keys@sha256:4f1c...#9a0b...
//
// The layer is either plain data or a metadata document. Metadata describes
// redirects, manifests, archives and splitfiles, whose content is spread over
// encrypted blocks in the same repository.
//
// # Quick Start
//
// Serve the explorer for keys in remote registries:
//
//	p, err := keyutils.New(keyutils.WithRemote(oci.WithDockerConfig()))
//	if err != nil {
//	    return err
//	}
//	http.Handle("/keyutils/", p.Handler())
//
// The explorer page at /keyutils/ shows the top level layer of a key as a
// hex dump and decomposes metadata into its fields, with links to follow
// redirects and to download splitfile content from /keyutils/Download.
//
// # Key Sources
//
// Exactly one of [WithRemote], [WithLayout] or [WithTarget] selects where
// keys are read from. Without any, remote registries are used with
// credentials from the docker config.
//
// # Caching
//
// Use [WithCacheDir] to keep fetched splitfile blocks on disk:
//
//	p, err := keyutils.New(
//	    keyutils.WithRemote(oci.WithDockerConfig()),
//	    keyutils.WithCacheDir("/var/cache/keyutils"),
//	)
//
// # Inserting Keys
//
// Package insert writes keys; package store reads them without the HTTP
// layer.
package keyutils
