package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <v1,v2,...>",
	Short: "Classify a landmark vector against the stored samples",
	Long: `Classify a flattened landmark vector (x0,y0,x1,y1,...) against the
stored samples and print the nearest label. Values may be separated by
commas or spaces.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	vec, err := parseVector(strings.Join(args, " "))
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := st.Samples().Classifier()
	if err != nil {
		return err
	}

	res := c.Classify(vec)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Status())
	if res.Label != "" {
		fmt.Fprintf(out, "label=%s distance=%.4f samples=%d\n", res.Label, res.Distance, c.Len())
	}
	return nil
}

func parseVector(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	vec := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("value %d %q: %w", i+1, f, err)
		}
		vec[i] = v
	}
	return vec, nil
}
