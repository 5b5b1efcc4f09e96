package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
)

const SecretKeyBytesLen = 32

type gensecretCmd struct {
	out io.Writer
}

func (*gensecretCmd) Name() string     { return "gensecret" }
func (*gensecretCmd) Synopsis() string { return "print a random hex secret for SECRET_KEY" }
func (*gensecretCmd) Usage() string {
	return `posctl gensecret

  Prints 32 random bytes hex encoded.
`
}

func (*gensecretCmd) SetFlags(*flag.FlagSet) {}

func (c *gensecretCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	b := make([]byte, SecretKeyBytesLen)

	if _, err := rand.Read(b); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Fprintln(c.out, hex.EncodeToString(b))
	return subcommands.ExitSuccess
}
