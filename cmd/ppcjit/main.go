package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/go-logr/logr/funcr"

	"github.com/ppcjit/ppcjit"
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "translate":
		doTranslate(flag.Args()[1:], stdOut, stdErr, exit)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

func doTranslate(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("translate", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var address string
	flags.StringVar(&address, "addr", "0x80003000", "guest address of the first instruction")

	var jitOff, fpOff, fprf, accurateFcmp, rcNative, noSSE3, verbose bool
	flags.BoolVar(&jitOff, "jit-off", false, "interpret every instruction")
	flags.BoolVar(&fpOff, "fp-off", false, "interpret floating-point instructions")
	flags.BoolVar(&fprf, "fprf", false, "interpret fmul and fmadd so FPSCR[FPRF] is maintained")
	flags.BoolVar(&accurateFcmp, "accurate-fcmp", false, "interpret fcmpu and fcmpo")
	flags.BoolVar(&rcNative, "rc-native", false, "translate record forms (Rc=1)")
	flags.BoolVar(&noSSE3, "no-sse3", false, "emit SSE2 code only")
	flags.BoolVar(&verbose, "v", false, "log fallback decisions")

	_ = flags.Parse(args)

	if help {
		printTranslateUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing instruction words")
		printTranslateUsage(stdErr, flags)
		exit(1)
	}

	start, err := parseWord(address)
	if err != nil {
		fmt.Fprintf(stdErr, "invalid address: %v\n", err)
		exit(1)
	}
	words := make([]uint32, 0, flags.NArg())
	for _, arg := range flags.Args() {
		w, err := parseWord(arg)
		if err != nil {
			fmt.Fprintf(stdErr, "invalid instruction word: %v\n", err)
			exit(1)
		}
		words = append(words, w)
	}

	config, err := ppcjit.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(stdErr, "invalid environment: %v\n", err)
		exit(1)
	}
	// Flags only ever turn settings on, on top of the environment.
	if jitOff {
		config = config.WithJITOff(true)
	}
	if fpOff {
		config = config.WithFloatingPointOff(true)
	}
	if fprf {
		config = config.WithFPRF(true)
	}
	if accurateFcmp {
		config = config.WithAccurateFcmp(true)
	}
	if rcNative {
		config = config.WithAccurateRecordFlags(false)
	}
	if noSSE3 {
		config = config.WithSSE3(false)
	}
	if verbose {
		config = config.WithLogger(funcr.New(func(prefix, args string) {
			fmt.Fprintln(stdErr, args)
		}, funcr.Options{Verbosity: 1}))
	}

	block, err := ppcjit.Translate(config, start, words)
	if err != nil {
		fmt.Fprintf(stdErr, "error translating: %v\n", err)
		exit(1)
	}

	for _, d := range block.Decisions {
		decision := "native"
		if !d.Native() {
			decision = "interpreted (" + string(d.Fallback) + ")"
		}
		fmt.Fprintf(stdOut, "%08x  %08x  %-8s %s\n", d.PC, uint32(d.Instruction), d.Instruction.Mnemonic(), decision)
	}
	fmt.Fprintf(stdOut, "\nhost code: %s, %d of %d instructions interpreted\n",
		units.BytesSize(float64(len(block.Code))), len(block.Fallbacks()), len(block.Decisions))
	fmt.Fprint(stdOut, hex.Dump(block.Code))
	exit(0)
}

func parseWord(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	return uint32(v), err
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "ppcjit CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  ppcjit <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  translate\tTranslates instruction words and prints the host code")
}

func printTranslateUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "ppcjit CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  ppcjit translate <options> <hex instruction word>...")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}
