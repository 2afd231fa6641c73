package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/export"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/platform"
)

var (
	svmLabels string
	svmOutput string
)

var svmtrainCmd = &cobra.Command{
	Use:   "svmtrain",
	Short: "Export labeled descriptors as a libSVM training file",
	Long: `Read a CSV of "vector key,label" rows and write one libSVM line per row.
String labels become integers starting at 1 in the order they first appear;
the association is printed when done.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if svmLabels == "" || svmOutput == "" {
			return fmt.Errorf("both -f and -o are required")
		}
		in, err := os.Open(svmLabels)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(svmOutput)
		if err != nil {
			return err
		}
		defer out.Close()

		index, err := platform.OpenVectorIndex(globalConfig)
		if err != nil {
			return fmt.Errorf("opening vector index: %w", err)
		}
		defer index.Close()

		labels, err := export.LibSVM(cmd.Context(), index, in, out)
		if err != nil {
			return err
		}
		if err := out.Sync(); err != nil {
			return err
		}
		for _, l := range labels {
			fmt.Fprintf(cmd.OutOrStdout(), "%d :: %s\n", l.Class, l.Name)
		}
		return nil
	},
}

func init() {
	svmtrainCmd.Flags().StringVarP(&svmLabels, "labels", "f", "", "CSV file mapping vector keys to labels")
	svmtrainCmd.Flags().StringVarP(&svmOutput, "output", "o", "", "libSVM file to write")
	rootCmd.AddCommand(svmtrainCmd)
}
