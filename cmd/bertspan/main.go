package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/katnastou/bert-span-classifier/internal/config"
	"github.com/katnastou/bert-span-classifier/internal/trainer"
)

type cliState struct {
	configPath string
	cfg        *config.Config
}

var (
	osExit                 = os.Exit
	osArgs                 = os.Args
	stderrWriter io.Writer = os.Stderr

	newBackend = func(cfg *config.Config) trainer.Backend {
		return &trainer.ExecBackend{Command: cfg.Backend.Command, BaseArgs: cfg.Backend.Args}
	}
)

func main() {
	cmd := newRootCmd()
	cmd.SetArgs(osArgs[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "bertspan",
		Short:         "Fine-tune BERT span classifiers",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newTrainCmd(st))
	root.AddCommand(newJobCmd(st))
	root.AddCommand(newPredictCmd(st))
	root.AddCommand(newConvertCmd(st))
	root.AddCommand(newHistoryCmd(st))
	root.AddCommand(newLeaderboardCmd(st))
	root.AddCommand(newDownloadCmd(st))
	return root
}

func loadConfigPreRun(st *cliState) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(st.configPath)
		if err != nil {
			return err
		}
		st.cfg = cfg
		return nil
	}
}
