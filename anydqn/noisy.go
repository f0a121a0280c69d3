package anydqn

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var n NoisyFC
	serializer.RegisterTypedDeserializer(n.SerializerType(), DeserializeNoisyFC)
}

// NoisyFC is a fully-connected layer whose effective
// weights are perturbed by factorized Gaussian noise, so
// that exploration comes from the parameter space rather
// than an epsilon schedule.
//
// See https://arxiv.org/abs/1706.10295.
type NoisyFC struct {
	InCount  int
	OutCount int

	// Learned parameters.
	Weights *anydiff.Var
	Biases  *anydiff.Var

	// Learned noise scales.
	SigWeights *anydiff.Var
	SigBiases  *anydiff.Var

	// Current noise, frozen until the next ResetNoise.
	epsWeights anyvec.Vector
	epsBiases  anyvec.Vector
}

// NewNoisyFC creates a NoisyFC with randomly initialized
// parameters and freshly drawn noise.
func NewNoisyFC(c anyvec.Creator, in, out int) *NoisyFC {
	res := &NoisyFC{
		InCount:    in,
		OutCount:   out,
		Weights:    anydiff.NewVar(c.MakeVector(in * out)),
		Biases:     anydiff.NewVar(c.MakeVector(out)),
		SigWeights: anydiff.NewVar(c.MakeVector(in * out)),
		SigBiases:  anydiff.NewVar(c.MakeVector(out)),
	}
	bound := 1 / math.Sqrt(float64(in))
	uniformInit(res.Weights.Vector, bound)
	uniformInit(res.Biases.Vector, bound)
	res.SigWeights.Vector.AddScalar(c.MakeNumeric(0.5 * bound))
	res.SigBiases.Vector.AddScalar(c.MakeNumeric(0.5 * bound))
	res.ResetNoise()
	return res
}

// DeserializeNoisyFC deserializes a NoisyFC.
// The restored layer starts with freshly drawn noise.
func DeserializeNoisyFC(d []byte) (*NoisyFC, error) {
	var w, b, sw, sb *anyvecsave.S
	var in, out int
	if err := serializer.DeserializeAny(d, &w, &b, &sw, &sb, &in, &out); err != nil {
		return nil, essentials.AddCtx("deserialize NoisyFC", err)
	}
	res := &NoisyFC{
		InCount:    in,
		OutCount:   out,
		Weights:    anydiff.NewVar(w.Vector),
		Biases:     anydiff.NewVar(b.Vector),
		SigWeights: anydiff.NewVar(sw.Vector),
		SigBiases:  anydiff.NewVar(sb.Vector),
	}
	res.ResetNoise()
	return res, nil
}

// ResetNoise redraws the layer's noise.
//
// The noise is factorized: one Gaussian draw per input
// and one per output are combined into per-weight noise.
// Between calls the noise is frozen, so repeated forward
// passes see the same perturbation.
func (n *NoisyFC) ResetNoise() {
	c := n.Weights.Vector.Creator()
	epsIn := noiseVector(n.InCount)
	epsOut := noiseVector(n.OutCount)
	weightNoise := make([]float64, 0, n.InCount*n.OutCount)
	for _, out := range epsOut {
		for _, in := range epsIn {
			weightNoise = append(weightNoise, out*in)
		}
	}
	n.epsWeights = c.MakeVectorData(c.MakeNumericList(weightNoise))
	n.epsBiases = c.MakeVectorData(c.MakeNumericList(epsOut))
}

// Apply applies the layer to a batch of inputs.
func (n *NoisyFC) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	if in.Output().Len() != batchSize*n.InCount {
		panic("incorrect input size")
	}
	weights := anydiff.Add(n.Weights,
		anydiff.Mul(n.SigWeights, anydiff.NewConst(n.epsWeights)))
	biases := anydiff.Add(n.Biases,
		anydiff.Mul(n.SigBiases, anydiff.NewConst(n.epsBiases)))
	return anydiff.Pool(weights, func(weights anydiff.Res) anydiff.Res {
		weightMat := &anydiff.Matrix{
			Data: weights,
			Rows: n.OutCount,
			Cols: n.InCount,
		}
		inMat := &anydiff.Matrix{
			Data: in,
			Rows: batchSize,
			Cols: n.InCount,
		}
		weighted := anydiff.MatMul(false, true, inMat, weightMat)
		return anydiff.AddRepeated(weighted.Data, biases)
	})
}

// Parameters returns the learned parameters, including
// the noise scales.
func (n *NoisyFC) Parameters() []*anydiff.Var {
	return []*anydiff.Var{n.Weights, n.Biases, n.SigWeights, n.SigBiases}
}

// SerializerType returns the unique ID used to serialize
// a NoisyFC with the serializer package.
func (n *NoisyFC) SerializerType() string {
	return "github.com/jvargas2/dream-warrior/anydqn.NoisyFC"
}

// Serialize serializes the layer.
// The transient noise is not saved; it is redrawn when
// the layer is deserialized.
func (n *NoisyFC) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: n.Weights.Vector},
		&anyvecsave.S{Vector: n.Biases.Vector},
		&anyvecsave.S{Vector: n.SigWeights.Vector},
		&anyvecsave.S{Vector: n.SigBiases.Vector},
		n.InCount,
		n.OutCount,
	)
}

func uniformInit(vec anyvec.Vector, bound float64) {
	c := vec.Creator()
	anyvec.Rand(vec, anyvec.Uniform, nil)
	vec.Scale(c.MakeNumeric(2 * bound))
	vec.AddScalar(c.MakeNumeric(-bound))
}

// noiseVector draws factorized noise values, applying the
// signed square root transform to each Gaussian draw.
func noiseVector(n int) []float64 {
	res := make([]float64, n)
	for i := range res {
		x := rand.NormFloat64()
		res[i] = math.Copysign(math.Sqrt(math.Abs(x)), x)
	}
	return res
}
