// Package main provides the mlp command line tool.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/mlp/nn"
	"github.com/born-ml/mlp/tensor"
	"github.com/born-ml/mlp/trainer"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("mlp %s\n", version)
	case "xor":
		err = runXOR(os.Args[2:])
	case "predict":
		err = runPredict(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("mlp - feed-forward networks from first principles")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version                           Show version")
	fmt.Println("  xor [-config f.yaml] [-save path] Train the XOR toy problem")
	fmt.Println("  predict -model path x1,x2,...     Run a saved network on one input")
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

const defaultXORConfig = `
trainer:
  epochs: 5000
  batch_size: 4
  stop: loss_below
  threshold: 0.01
loss: cross_entropy
optimizer:
  type: sgd
  sgd:
    lr: 0.5
    momentum: 0.9
`

func runXOR(args []string) error {
	fs := flag.NewFlagSet("xor", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML training config (default: built-in)")
	savePath := fs.String("save", "", "write the trained network to this path")
	hidden := fs.Int("hidden", 4, "hidden layer width")
	seed := fs.Uint64("seed", 1, "weight initialization seed")
	verbose := fs.Bool("v", false, "log every epoch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		cfg *trainer.FileConfig
		err error
	)
	if *configPath != "" {
		cfg, err = trainer.LoadConfig(*configPath)
	} else {
		cfg, err = trainer.ParseConfig(strings.NewReader(defaultXORConfig))
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(*verbose)
	cfg.Trainer.Logger = logger

	net, err := nn.New(rand.NewPCG(*seed, *seed+1),
		nn.LayerSpec{In: 2, Out: *hidden, Activation: nn.Tanh},
		nn.LayerSpec{In: *hidden, Out: 1, Activation: nn.Sigmoid},
	)
	if err != nil {
		return err
	}
	loss, err := nn.LossFor(cfg.Loss)
	if err != nil {
		return err
	}
	opt, err := cfg.Optimizer.Build()
	if err != nil {
		return err
	}
	tr, err := trainer.New(cfg.Trainer)
	if err != nil {
		return err
	}

	inputs := [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	data, err := trainer.NewDataset(inputs, [][]float64{{0}, {1}, {1}, {0}})
	if err != nil {
		return err
	}

	result, err := tr.Train(net, data, loss, opt)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	x, err := tensor.FromRows(inputs)
	if err != nil {
		return err
	}
	out, err := net.Predict(x)
	if err != nil {
		return err
	}
	for i, in := range inputs {
		fmt.Printf("%v -> %.4f\n", in, out.At(i, 0))
	}
	fmt.Printf("outcome=%s epochs=%d loss=%.6f\n", result.Outcome, result.Epochs, result.FinalLoss)

	if *savePath != "" {
		meta := map[string]string{"task": "xor", "epochs": strconv.Itoa(result.Epochs)}
		if err := nn.SaveFile(*savePath, net, meta); err != nil {
			return fmt.Errorf("save network: %w", err)
		}
		logger.Info("network saved", "path", *savePath)
	}
	return nil
}

func runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	modelPath := fs.String("model", "", "network file written by xor -save")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" || fs.NArg() != 1 {
		return errors.New("usage: mlp predict -model path x1,x2,...")
	}

	net, err := nn.LoadFile(*modelPath)
	if err != nil {
		return err
	}

	fields := strings.Split(fs.Arg(0), ",")
	values := make([]float64, len(fields))
	for i, f := range fields {
		if values[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}
	x, err := tensor.FromSlice(values, 1, len(values))
	if err != nil {
		return err
	}
	out, err := net.Predict(x)
	if err != nil {
		return err
	}
	fmt.Println(out.Data())
	return nil
}
