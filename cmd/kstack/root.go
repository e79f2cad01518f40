package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"omibyte.io/kestrel/arc/arcv2"
	"omibyte.io/kestrel/kernel"
	"omibyte.io/kestrel/targets"
)

var (
	board     string
	stackSize uint32
	userMode  bool

	rootCmd = &cobra.Command{
		Use:   "kstack",
		Short: "Inspect kestrel stack layouts and initial frames",
		Long: "kstack resolves a board's capability descriptor and prints the stack\n" +
			"partition and initial register frame layout the kernel would produce\n" +
			"for it, without needing target hardware.",
	}

	targetsCmd = &cobra.Command{
		Use:   "targets",
		Short: "List the supported target descriptors",
		Run: func(cmd *cobra.Command, args []string) {
			bySeries := map[string]targets.Targets{}
			for _, t := range targets.All() {
				bySeries[t.Series] = append(bySeries[t.Series], t)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SERIES\tCORE\tBOARDS\tMPU\tUSERSPACE\tSECURE")
			series := maps.Keys(bySeries)
			slices.Sort(series)
			for _, s := range series {
				for _, t := range bySeries[s] {
					fmt.Fprintf(w, "%s\t%s\t%s\tv%d\t%v\t%v\n",
						t.Series, t.Core, strings.Join(t.Boards, ","), t.MPUVersion, t.Userspace, t.SecureShield)
				}
			}
			w.Flush()
		},
	}

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Print the stack partition for a board",
		Run: func(cmd *cobra.Command, args []string) {
			caps := resolveCaps()
			protected := caps.GuardSize > 0
			p, err := kernel.PlanStackLayout(0, stackSize, userMode, protected, caps)
			if err != nil {
				log.Fatalf("plan: %v", err)
			}

			fmt.Printf("board %s, %d bytes requested, user=%v, rounding=%s\n\n",
				board, stackSize, userMode, caps.Rounding)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REGION\tOFFSET\tSIZE")
			printRegion := func(name string, r arcv2.Region) {
				if r.Empty() {
					return
				}
				fmt.Fprintf(w, "%s\t%#x\t%d\n", name, uintptr(r.Base), r.Size)
			}
			if userMode {
				printRegion("working", p.Working)
				printRegion("guard", p.Guard)
				printRegion("privileged", p.Priv)
			} else {
				printRegion("guard", p.Guard)
				printRegion("working", p.Working)
			}
			fmt.Fprintf(w, "total\t\t%d\n", p.Total())
			w.Flush()
		},
	}

	frameCmd = &cobra.Command{
		Use:   "frame",
		Short: "Print the initial frame layout for a board",
		Run: func(cmd *cobra.Command, args []string) {
			caps := resolveCaps()
			layout := caps.Frame()

			fields := []string{"pc"}
			if layout.Secure() {
				fields = append(fields, "sec_stat")
			}
			fields = append(fields, "status32", "r3", "r2", "r1", "r0")

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FIELD\tOFFSET")
			for i, f := range fields {
				fmt.Fprintf(w, "%s\t%d\n", f, i*4)
			}
			w.Flush()
			fmt.Printf("\nframe size %d bytes, callee-saved area %d bytes\n",
				layout.Size(), arcv2.CalleeSavedSize)
		},
	}
)

// resolveCaps finds the board's descriptor, falling back to a series
// match, and resolves it to capabilities.
func resolveCaps() arcv2.Capabilities {
	target, err := targets.All().FindByBoard(board)
	if err != nil {
		target, err = targets.All().FindBySeries(board)
	}
	if err != nil {
		log.Fatalf("%s: %v", board, err)
	}
	caps, err := target.Capabilities()
	if err != nil {
		log.Fatalf("%s: %v", board, err)
	}
	return caps
}

func init() {
	for _, cmd := range []*cobra.Command{planCmd, frameCmd} {
		cmd.Flags().StringVar(&board, "board", "", "target board or series name")
		cmd.MarkFlagRequired("board")
	}
	planCmd.Flags().Uint32Var(&stackSize, "size", 1024, "requested working stack size in bytes")
	planCmd.Flags().BoolVar(&userMode, "user", false, "plan for a user thread")

	rootCmd.AddCommand(targetsCmd, planCmd, frameCmd)
}
