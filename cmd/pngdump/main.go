// Command pngdump inspects and dumps PNG images from the command line.
//
// Usage:
//
//	pngdump info <input.png>          Display PNG metadata
//	pngdump ppm [options] <input.png> Decode to a PPM file
package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/Rublue3748/image-parser"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "info":
		err = runInfo(os.Args[2:])
	case "ppm":
		err = runPPM(os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "pngdump: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "pngdump: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  pngdump info <input.png>           Display PNG metadata
  pngdump ppm [options] <input.png>  Decode to a PPM file

Use "-" as input to read from stdin, "-o -" to write to stdout.
`)
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func runInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("info: missing input file\nUsage: pngdump info <input.png>")
	}
	inputPath := args[0]

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	cfg, err := pngdec.DecodeConfig(in)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}

	name := inputPath
	if inputPath == "-" {
		name = "<stdin>"
	}
	fmt.Printf("File:       %s\n", name)
	fmt.Printf("Dimensions: %d x %d\n", cfg.Width, cfg.Height)

	if inputPath != "-" {
		fi, err := os.Stat(inputPath)
		if err == nil {
			fmt.Printf("File size:  %d bytes\n", fi.Size())
		}
	}
	return nil
}

func runPPM(args []string) error {
	fs := flag.NewFlagSet("ppm", flag.ContinueOnError)
	output := fs.String("o", "", `output path (default: <input>.ppm, "-" for stdout)`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("ppm: missing input file\nUsage: pngdump ppm [options] <input.png>")
	}
	inputPath := fs.Arg(0)

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	img, err := pngdec.Decode(in)
	if err != nil {
		return fmt.Errorf("ppm: %w", err)
	}

	var out io.Writer
	if *output == "-" {
		out = os.Stdout
	} else {
		outputPath := *output
		if outputPath == "" {
			outputPath = trimExt(inputPath) + ".ppm"
		}
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	return writePPM(out, img)
}

// writePPM writes img as a binary (P6) PPM, converting through NRGBA
// and dropping alpha — PPM has no transparency channel.
func writePPM(w io.Writer, img image.Image) error {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P6\n%d %d\n255\n", width, height)

	row := make([]byte, width*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := (x - b.Min.X) * 3
			row[i+0] = c.R
			row[i+1] = c.G
			row[i+2] = c.B
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func trimExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}
