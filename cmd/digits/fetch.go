package main

import (
	"context"
	"flag"
	"log"

	"github.com/ahmedtd/digits/mnist"
	"github.com/google/subcommands"
)

type FetchCommand struct {
	dataDir string
	mirror  string
}

var _ subcommands.Command = (*FetchCommand)(nil)

func (*FetchCommand) Name() string {
	return "fetch"
}

func (*FetchCommand) Synopsis() string {
	return "Download and verify the MNIST dataset files"
}

func (*FetchCommand) Usage() string {
	return ``
}

func (c *FetchCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dataDir, "data-dir", "data", "Directory to store the dataset files")
	f.StringVar(&c.mirror, "mirror", "", "Base URL to download from (default: the CVDF mirror)")
}

func (c *FetchCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := mnist.Fetch(ctx, c.dataDir, c.mirror); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	log.Printf("Dataset files present and verified in %s", c.dataDir)
	return subcommands.ExitSuccess
}
