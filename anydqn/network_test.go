package anydqn

import (
	"math"
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestQNetworkOutputSize(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	network, err := NewQNetwork(c, 36, 36, 4, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	inSize := 36 * 36 * 4
	for batch := 1; batch <= 2; batch++ {
		in := anydiff.NewConst(c.MakeVector(inSize * batch))
		out := network.Apply(in, batch)
		if out.Output().Len() != 5*batch {
			t.Errorf("batch %d: output length should be %d but got %d",
				batch, 5*batch, out.Output().Len())
		}
	}
}

func TestQNetworkDistribution(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	network, err := NewQNetwork(c, 36, 36, 4, 5, 3)
	if err != nil {
		t.Fatal(err)
	}
	in := anydiff.NewConst(randomVector(c, 36*36*4))
	out := vecData(network.Apply(in, 1).Output())
	if len(out) != 15 {
		t.Fatalf("output length should be 15 but got %d", len(out))
	}
	for i := 0; i < len(out); i += 3 {
		var sum float64
		for _, p := range out[i : i+3] {
			if p < 0 {
				t.Fatalf("probability should not be negative: %f", p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-4 {
			t.Errorf("atoms for action %d sum to %f", i/3, sum)
		}
	}
}

func TestQNetworkResetNoise(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	network, err := NewQNetwork(c, 36, 36, 4, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	in := anydiff.NewConst(randomVector(c, 36*36*4))
	out1 := vecData(network.Apply(in, 1).Output())
	out2 := vecData(network.Apply(in, 1).Output())
	if !reflect.DeepEqual(out1, out2) {
		t.Error("output changed without a noise reset")
	}
	network.ResetNoise()
	out3 := vecData(network.Apply(in, 1).Output())
	if reflect.DeepEqual(out1, out3) {
		t.Error("output did not change after a noise reset")
	}
}

func TestQNetworkSerialize(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	network, err := NewQNetwork(c, 36, 36, 4, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	data, err := serializer.SerializeAny(network)
	if err != nil {
		t.Fatal(err)
	}
	var restored *QNetwork
	if err := serializer.DeserializeAny(data, &restored); err != nil {
		t.Fatal(err)
	}
	if restored.NumActions != 3 || restored.NumAtoms != 1 {
		t.Errorf("bad sizes: %d, %d", restored.NumActions, restored.NumAtoms)
	}
	original := network.Parameters()
	params := restored.Parameters()
	if len(params) != len(original) {
		t.Fatalf("parameter count should be %d but got %d", len(original),
			len(params))
	}
	for i, param := range params {
		if !reflect.DeepEqual(vecData(param.Vector),
			vecData(original[i].Vector)) {
			t.Errorf("parameter %d changed", i)
		}
	}
}
