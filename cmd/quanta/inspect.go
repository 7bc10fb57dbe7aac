package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/quantaml/quanta/internal/onnx"
	"github.com/quantaml/quanta/pkg/mqf"
)

func inspectCmd() *cli.Command {
	var (
		showAll      bool
		showSections bool
		showTensors  bool
		showQuant    bool
		showLabels   bool
		showInfo     bool
		tensorLimit  int
		tensorFilter string
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect an .mqf container or .onnx model",
		ArgsUsage: "<model.mqf | model.onnx>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "show every section", Destination: &showAll},
			&cli.BoolFlag{Name: "sections", Usage: "show section directory", Destination: &showSections},
			&cli.BoolFlag{Name: "tensors", Usage: "list tensor index", Destination: &showTensors},
			&cli.BoolFlag{Name: "quant", Usage: "show quantization records", Destination: &showQuant},
			&cli.BoolFlag{Name: "labels", Usage: "list class labels", Destination: &showLabels},
			&cli.BoolFlag{Name: "modelinfo", Usage: "print raw model info", Destination: &showInfo},
			&cli.IntFlag{Name: "tensors-limit", Usage: "limit tensor listing (0 = no limit)", Value: 50, Destination: &tensorLimit},
			&cli.StringFlag{Name: "tensor-filter", Usage: "substring filter for tensor listing", Destination: &tensorFilter},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_ = ctx

			path := cmd.Args().First()
			if path == "" {
				return cli.Exit("error: a .mqf path is required", 1)
			}
			if showAll {
				showSections = true
				showTensors = true
				showQuant = true
				showLabels = true
				showInfo = true
				if tensorLimit == 50 {
					tensorLimit = 0
				}
			}

			stat, err := os.Stat(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat %q: %v", path, err), 1)
			}
			if stat.IsDir() {
				return cli.Exit("error: quanta inspect only supports .mqf and .onnx files", 1)
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".onnx":
				return inspectONNX(path, stat.Size(), tensorFilter, tensorLimit, showTensors || showAll)
			case ".mqf":
			default:
				return cli.Exit("error: quanta inspect only supports .mqf and .onnx files", 1)
			}

			f, err := mqf.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open mqf: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			fmt.Printf("MQF Inspect: %s\n", path)
			fmt.Printf("File: %s (%s)\n", filepath.Base(path), formatBytes(uint64(stat.Size())))
			printHeader(f.Header)

			info, _ := mqf.ParseModelInfo(f.SectionData(f.Section(mqf.SectionModelInfo)))
			printModelSummary(info)

			if showSections {
				printSectionDirectory(f.Sections)
			}
			if showTensors {
				printTensorIndex(f, tensorFilter, tensorLimit, showQuant)
			}
			if showQuant {
				printQuantRecords(f)
			}
			if showLabels {
				printLabels(f)
			}
			if showInfo {
				printRawSection("Model Info", f.SectionData(f.Section(mqf.SectionModelInfo)))
			}
			return nil
		},
	}
}

func inspectONNX(path string, size int64, filter string, limit int, withInitializers bool) error {
	model, err := onnx.ParseFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: parse onnx: %v", err), 1)
	}

	fmt.Printf("ONNX Inspect: %s\n", path)
	fmt.Printf("File: %s (%s)\n", filepath.Base(path), formatBytes(uint64(size)))

	section("Model")
	row("graph", model.GraphName)
	row("producer", strings.TrimSpace(model.ProducerName+" "+model.ProducerVersion))
	if model.OpsetVersion != 0 {
		row("opset", fmt.Sprintf("%d", model.OpsetVersion))
	}
	for _, in := range model.Inputs {
		row("input", fmt.Sprintf("%s %s", in.Name, formatDims(in.Shape)))
	}
	for _, out := range model.Outputs {
		row("output", fmt.Sprintf("%s %s", out.Name, formatDims(out.Shape)))
	}
	if len(model.Operators) > 0 {
		row("operators", strings.Join(model.Operators, ", "))
	}
	row("initializers", fmt.Sprintf("%d", len(model.Initializers)))

	if withInitializers {
		section("Initializers")
		printed := 0
		for _, init := range model.Initializers {
			if filter != "" && !strings.Contains(init.Name, filter) {
				continue
			}
			fmt.Printf("%s  dtype=%d shape=%s size=%s\n",
				init.Name, init.DataType, formatDims(init.Dims), formatBytes(uint64(len(init.Raw))))
			printed++
			if limit > 0 && printed >= limit {
				break
			}
		}
		if limit > 0 && printed < len(model.Initializers) {
			fmt.Printf("... (%d shown of %d)\n", printed, len(model.Initializers))
		}
	}
	return nil
}

func printHeader(h *mqf.Header) {
	if h == nil {
		return
	}
	var flags []string
	if h.Flags&mqf.FlagTensorDataAligned64 != 0 {
		flags = append(flags, "tensor_data_aligned64")
	}
	if h.Flags&mqf.FlagDeduplicated != 0 {
		flags = append(flags, "deduplicated")
	}
	flagStr := "none"
	if len(flags) > 0 {
		flagStr = strings.Join(flags, ", ")
	}
	fmt.Printf("MQF Header: v%d.%d sections=%d header=%dB flags=%s\n",
		h.Major, h.Minor, h.SectionCount, h.HeaderSize, flagStr)
}

func printModelSummary(info *mqf.ModelInfo) {
	if info == nil {
		return
	}
	section("Model")
	row("name", info.Name)
	row("producer", info.Producer)
	if info.OpsetVersion != 0 {
		row("opset", fmt.Sprintf("%d", info.OpsetVersion))
	}
	row("quantized", fmt.Sprintf("%v", info.Quantized))
	for _, in := range info.Inputs {
		row("input", fmt.Sprintf("%s %s", in.Name, formatDims(in.Dims)))
	}
	for _, out := range info.Outputs {
		row("output", fmt.Sprintf("%s %s", out.Name, formatDims(out.Dims)))
	}
	if len(info.Operators) > 0 {
		row("operators", strings.Join(info.Operators, ", "))
	}
}

func printSectionDirectory(sections []mqf.Section) {
	section("Sections")
	for _, s := range sections {
		fmt.Printf("%-16s v%-2d off=%-10d size=%s\n",
			sectionTypeName(mqf.SectionType(s.Type)), s.Version, s.Offset, formatBytes(s.Size))
	}
}

func printTensorIndex(f *mqf.File, filter string, limit int, withQuant bool) {
	section("Tensor Index")
	sec := f.Section(mqf.SectionTensorIndex)
	if sec == nil {
		fmt.Println("(no tensor index section)")
		return
	}
	records, err := mqf.ParseTensorIndex(f.SectionData(sec))
	if err != nil {
		fmt.Printf("(tensor index parse error: %v)\n", err)
		return
	}

	quantByName := map[string]mqf.QuantRecord{}
	if withQuant {
		if qs := f.Section(mqf.SectionQuantInfo); qs != nil {
			if qrs, err := mqf.ParseQuantInfo(f.SectionData(qs)); err == nil {
				for _, r := range qrs {
					quantByName[r.Name] = r
				}
			}
		}
	}

	printed := 0
	for _, r := range records {
		if filter != "" && !strings.Contains(r.Name, filter) {
			continue
		}
		line := fmt.Sprintf("%s  dtype=%s shape=%s size=%s",
			r.Name, r.DType, formatDims(r.Shape), formatBytes(r.Size))
		if q, ok := quantByName[r.Name]; ok {
			line += fmt.Sprintf(" scale=%g zp=%d range=[%g,%g]", q.Scale, q.ZeroPoint, q.Min, q.Max)
		}
		fmt.Println(line)
		printed++
		if limit > 0 && printed >= limit {
			break
		}
	}
	if limit > 0 && printed < len(records) {
		fmt.Printf("... (%d shown of %d)\n", printed, len(records))
	}
}

func printQuantRecords(f *mqf.File) {
	section("Quantization")
	sec := f.Section(mqf.SectionQuantInfo)
	if sec == nil {
		fmt.Println("(no quant info section)")
		return
	}
	records, err := mqf.ParseQuantInfo(f.SectionData(sec))
	if err != nil {
		fmt.Printf("(quant info parse error: %v)\n", err)
		return
	}
	for _, r := range records {
		fmt.Printf("%-40s %-12s scale=%-12g zp=%-4d range=[%g, %g]\n",
			r.Name, r.Domain, r.Scale, r.ZeroPoint, r.Min, r.Max)
	}
}

func printLabels(f *mqf.File) {
	section("Labels")
	sec := f.Section(mqf.SectionLabels)
	if sec == nil {
		fmt.Println("(no labels section)")
		return
	}
	for i, name := range mqf.ParseLabels(f.SectionData(sec)) {
		fmt.Printf("%6d  %s\n", i, name)
	}
}

func printRawSection(name string, data []byte) {
	section(name)
	if len(data) == 0 {
		fmt.Println("(missing)")
		return
	}
	fmt.Println(string(data))
}

func section(title string) {
	line := strings.Repeat("-", len(title)+8)
	fmt.Printf("\n%s\n--- %s ---\n%s\n", line, title, line)
}

func row(label, value string) {
	if value == "" {
		return
	}
	fmt.Printf("%-16s %s\n", label+":", value)
}

func formatDims(dims []int64) string {
	if len(dims) == 0 {
		return "[]"
	}
	parts := make([]string, len(dims))
	for i, v := range dims {
		if v < 0 {
			parts[i] = "?"
			continue
		}
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func sectionTypeName(t mqf.SectionType) string {
	switch t {
	case mqf.SectionModelInfo:
		return "ModelInfo"
	case mqf.SectionQuantInfo:
		return "QuantInfo"
	case mqf.SectionTensorIndex:
		return "TensorIndex"
	case mqf.SectionTensorData:
		return "TensorData"
	case mqf.SectionLabels:
		return "Labels"
	default:
		return fmt.Sprintf("Section0x%04x", uint32(t))
	}
}
