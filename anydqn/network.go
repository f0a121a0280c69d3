package anydqn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyconv"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var q QNetwork
	serializer.RegisterTypedDeserializer(q.SerializerType(), DeserializeQNetwork)
}

// A ValueNet maps stacked observations to per-action
// value estimates.
type ValueNet interface {
	anynet.Layer
	anynet.Parameterizer

	// ResetNoise redraws any exploration noise in the
	// network.
	ResetNoise()
}

// QNetwork is a ValueNet built from a convolutional
// feature extractor followed by two noisy layers.
//
// With NumAtoms > 1 the network is distributional: every
// action gets NumAtoms probability values, normalized by
// a softmax over the atoms.
type QNetwork struct {
	Features anynet.Net
	Hidden   *NoisyFC
	Out      *NoisyFC

	NumActions int
	NumAtoms   int
}

// NewQNetwork creates a QNetwork for stacked observations
// of the given dimensions.
//
// The width of the feature extractor's output is
// discovered with a dry run on a zero input, so the
// network adapts to any frame geometry.
//
// Pass numAtoms = 1 for plain scalar action values.
func NewQNetwork(c anyvec.Creator, width, height, depth, numActions,
	numAtoms int) (network *QNetwork, err error) {
	defer essentials.AddCtxTo("create Q-network", &err)
	if numAtoms < 1 {
		numAtoms = 1
	}
	markup := fmt.Sprintf(`
		Input(w=%d, h=%d, d=%d)

		Conv(w=8, h=8, n=32, sx=4, sy=4)
		ReLU
		Conv(w=4, h=4, n=64, sx=2, sy=2)
		ReLU
		Conv(w=3, h=3, n=64, sx=1, sy=1)
		ReLU
	`, width, height, depth)
	convNet, err := anyconv.FromMarkup(c, markup)
	if err != nil {
		return nil, err
	}
	features := convNet.(anynet.Net)
	zeroIn := anydiff.NewConst(c.MakeVector(width * height * depth))
	featureSize := features.Apply(zeroIn, 1).Output().Len()
	return &QNetwork{
		Features:   features,
		Hidden:     NewNoisyFC(c, featureSize, 512),
		Out:        NewNoisyFC(c, 512, numActions*numAtoms),
		NumActions: numActions,
		NumAtoms:   numAtoms,
	}, nil
}

// DeserializeQNetwork deserializes a QNetwork.
func DeserializeQNetwork(d []byte) (*QNetwork, error) {
	var res QNetwork
	err := serializer.DeserializeAny(d, &res.Features, &res.Hidden, &res.Out,
		&res.NumActions, &res.NumAtoms)
	if err != nil {
		return nil, essentials.AddCtx("deserialize QNetwork", err)
	}
	return &res, nil
}

// Apply computes action values for a batch of stacked
// observations.
func (q *QNetwork) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	out := q.Features.Apply(in, batchSize)
	out = anynet.ReLU.Apply(q.Hidden.Apply(out, batchSize), batchSize)
	out = q.Out.Apply(out, batchSize)
	if q.NumAtoms > 1 {
		out = anydiff.Exp(anydiff.LogSoftmax(out, q.NumAtoms))
	}
	return out
}

// Parameters returns the parameters of every layer.
func (q *QNetwork) Parameters() []*anydiff.Var {
	return anynet.AllParameters(q.Features, q.Hidden, q.Out)
}

// ResetNoise redraws the noise in both noisy layers.
func (q *QNetwork) ResetNoise() {
	q.Hidden.ResetNoise()
	q.Out.ResetNoise()
}

// SerializerType returns the unique ID used to serialize
// a QNetwork with the serializer package.
func (q *QNetwork) SerializerType() string {
	return "github.com/jvargas2/dream-warrior/anydqn.QNetwork"
}

// Serialize serializes the QNetwork.
func (q *QNetwork) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		q.Features,
		q.Hidden,
		q.Out,
		q.NumActions,
		q.NumAtoms,
	)
}
