package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bandtest-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version     Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  run         Run a Bollinger band backtest\n")
		fmt.Fprintf(os.Stderr, "  profiles    List synthetic symbol profiles\n")
		fmt.Fprintf(os.Stderr, "  strategies  List strategies and bar sources\n")
		fmt.Fprintf(os.Stderr, "  import      Import daily bars into the local parquet store\n")
		fmt.Fprintf(os.Stderr, "  symbols     List symbols held in the local parquet store\n")
		fmt.Fprintf(os.Stderr, "\nRun 'bandtest-cli <command> -h' for command options.\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("bandtest-cli %s\n", version)

	case "run":
		err = runCmd(os.Args[2:])

	case "profiles":
		err = profilesCmd(os.Args[2:])

	case "strategies":
		err = strategiesCmd(os.Args[2:])

	case "import":
		err = importCmd(os.Args[2:])

	case "symbols":
		err = symbolsCmd(os.Args[2:])

	case "-h", "--help", "help":
		flag.Usage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
