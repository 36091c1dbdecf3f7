package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/born-ml/lowbit/dtypes"
)

func runTypes(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("types", flag.ContinueOnError)
	qualified := fs.Bool("qualified", false, "Show qualified names")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := dtypes.Init(); err != nil {
		return err
	}

	fmt.Fprintln(out, render(titleStyle, "Narrow floating-point types"))
	fmt.Fprintln(out)
	header := fmt.Sprintf("%-28s %-4s %-8s %4s %3s %3s  %s", "NAME", "CODE", "TYPENUM", "BITS", "E", "M", "DEVICE")
	fmt.Fprintln(out, render(headerStyle, header))
	fmt.Fprintln(out, strings.Repeat("-", len(header)))

	for _, t := range dtypes.All() {
		h, err := t.Register()
		if err != nil {
			return err
		}
		d, c := t.Descriptor(), t.Codec()
		name := d.Name
		if *qualified {
			name = d.QualifiedName
		}
		fmt.Fprintf(out, "%s %-4c %-8d %4d %3d %3d  %s\n",
			render(nameStyle, fmt.Sprintf("%-28s", name)),
			d.TypeChar, h.TypeNum, c.Bits(), c.ExponentBits(), c.MantissaBits(), d.DeviceType)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, render(helpStyle, "Registered types convert to and from float32, float64 and each other."))
	return nil
}
