// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/born-ml/mlp/nn"
	"github.com/born-ml/mlp/tensor"
)

func TestFacadeNetwork(t *testing.T) {
	net, err := nn.New(rand.NewPCG(1, 2),
		nn.LayerSpec{In: 2, Out: 3, Activation: nn.ReLU, Init: nn.NormalInit{StdDev: 0.5}},
		nn.LayerSpec{In: 3, Out: 1, Activation: nn.Sigmoid},
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if net.InputSize() != 2 || net.OutputSize() != 1 {
		t.Errorf("sizes = %d -> %d, want 2 -> 1", net.InputSize(), net.OutputSize())
	}

	x, _ := tensor.FromRows([][]float64{{0.5, -1}, {2, 0.25}})
	out, err := net.Forward(x)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if !out.Shape().Equal(tensor.Shape{2, 1}) {
		t.Errorf("output shape = %v, want [2 1]", out.Shape())
	}

	var buf bytes.Buffer
	if err := nn.Save(&buf, net, nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	restored, err := nn.Load(&buf)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	again, err := restored.Forward(x)
	if err != nil {
		t.Fatalf("Forward after Load failed: %v", err)
	}
	if !out.BitEqual(again) {
		t.Errorf("restored output %v differs from %v", again, out)
	}
}

func TestFacadeChainMismatch(t *testing.T) {
	_, err := nn.New(rand.NewPCG(1, 2),
		nn.LayerSpec{In: 2, Out: 3, Activation: nn.Tanh},
		nn.LayerSpec{In: 4, Out: 1, Activation: nn.Sigmoid},
	)
	if !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestFacadeLossLookup(t *testing.T) {
	kind, err := nn.ParseLoss("cross_entropy")
	if err != nil {
		t.Fatalf("ParseLoss failed: %v", err)
	}
	loss, err := nn.LossFor(kind)
	if err != nil {
		t.Fatalf("LossFor failed: %v", err)
	}
	if loss.Kind() != nn.CrossEntropy {
		t.Errorf("Kind() = %v, want cross_entropy", loss.Kind())
	}

	if _, err := nn.ParseActivation("gelu"); !errors.Is(err, tensor.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestFacadeLoadRejectsGarbage(t *testing.T) {
	_, err := nn.Load(bytes.NewReader(bytes.Repeat([]byte{0x42}, 128)))
	if !errors.Is(err, nn.ErrInvalidMagic) {
		t.Errorf("expected ErrInvalidMagic, got %v", err)
	}
}
