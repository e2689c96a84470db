package cli

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Manage the labeled samples signs are matched against",
}

var samplesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import samples from a YAML or JSON file",
	Long: `Import labeled landmark vectors. The file is either a list of
{label, vector} entries or an object with a "samples" list. Every vector
must have the same length as the samples already stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runSamplesImport,
}

var samplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored samples",
	Args:  cobra.NoArgs,
	RunE:  runSamplesList,
}

var listVerbose bool

func init() {
	rootCmd.AddCommand(samplesCmd)
	samplesCmd.AddCommand(samplesImportCmd)
	samplesCmd.AddCommand(samplesListCmd)

	samplesListCmd.Flags().BoolVarP(&listVerbose, "verbose", "v", false, "List every sample instead of counts per label")
}

func runSamplesImport(cmd *cobra.Command, args []string) error {
	samples, err := readSeedFile(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := importSamples(st, samples, cmd.ErrOrStderr()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d samples from %s\n", len(samples), args[0])
	return nil
}

func runSamplesList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if listVerbose {
		samples, err := st.Samples().List()
		if err != nil {
			return err
		}
		for _, s := range samples {
			fmt.Fprintf(out, "%s  %-20s  dim=%d  added %s\n", s.ID, s.Label, len(s.Vector), humanize.Time(s.CreatedAt))
		}
		fmt.Fprintf(out, "%d samples\n", len(samples))
		return nil
	}

	labels, err := st.Samples().Labels()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(labels))
	total := 0
	for name, n := range labels {
		names = append(names, name)
		total += n
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(out, "%-20s %d\n", name, labels[name])
	}
	fmt.Fprintf(out, "%d samples, %d labels\n", total, len(names))
	return nil
}
