package anydqn

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
)

// An Optimizer applies gradient steps to a set of
// parameters.
//
// Every gradient component is clipped to [-Clip, Clip]
// before the Transformer runs, bounding the damage any
// single outlier transition can do.
type Optimizer struct {
	// Transformer post-processes gradients, e.g. an
	// anysgd.RMSProp.
	// If nil, vanilla gradients are used.
	Transformer anysgd.Transformer

	// StepSize is the learning rate.
	StepSize float64

	// Clip bounds gradient components.
	// If 0, 1 is used.
	Clip float64
}

// Step clips, transforms, and applies a gradient.
func (o *Optimizer) Step(grad anydiff.Grad) {
	clip := o.Clip
	if clip == 0 {
		clip = 1
	}
	var c anyvec.Creator
	for _, vec := range grad {
		c = vec.Creator()
		clipRange(vec, clip)
	}
	if c == nil {
		return
	}
	if o.Transformer != nil {
		grad = o.Transformer.Transform(grad)
	}
	grad.Scale(c.MakeNumeric(-o.StepSize))
	grad.AddToVars()
}

// An Agent owns a policy network and a target network of
// identical structure but independent weights.
//
// The target network is only ever written by SyncTarget,
// never by gradient descent.
type Agent struct {
	Policy ValueNet
	Target ValueNet

	// NumActions is the size of the reduced action set.
	NumActions int

	// NumAtoms is the number of atoms per action when
	// the networks are distributional, or 1.
	NumAtoms int

	// Support holds the value of each atom.
	// It is required exactly when NumAtoms > 1.
	Support []float64
}

// NewAgent creates an Agent from two structurally
// identical networks and synchronizes the target with the
// policy.
func NewAgent(policy, target *QNetwork) *Agent {
	res := &Agent{
		Policy:     policy,
		Target:     target,
		NumActions: policy.NumActions,
		NumAtoms:   policy.NumAtoms,
	}
	res.SyncTarget()
	return res
}

// SelectAction returns the greedy action for a single
// stacked observation.
//
// In distributional mode the action with the highest
// expected value under Support is chosen.
func (a *Agent) SelectAction(state anyvec.Vector) int {
	out := a.Policy.Apply(anydiff.NewConst(state), 1).Output()
	if a.NumAtoms <= 1 {
		return anyvec.MaxIndex(out)
	}
	if len(a.Support) != a.NumAtoms {
		panic("support size must match atom count")
	}
	probs := out.Creator().Float64Slice(out.Data())
	best, bestValue := 0, math.Inf(-1)
	for action := 0; action < a.NumActions; action++ {
		var expected float64
		for i, z := range a.Support {
			expected += probs[action*a.NumAtoms+i] * z
		}
		if expected > bestValue {
			best, bestValue = action, expected
		}
	}
	return best
}

// RandomAction returns a uniformly random action index.
func (a *Agent) RandomAction() int {
	return rand.Intn(a.NumActions)
}

// Optimize runs one optimization step on a batch sampled
// from memory.
//
// If the memory holds fewer than batchSize transitions,
// no parameters are touched and stepped is false; this is
// the normal state early in training, not an error.
//
// The loss is the mean Huber regression loss between the
// policy's estimates for the taken actions and the TD
// targets derived from the target network.
func (a *Agent) Optimize(opt *Optimizer, memory *Memory, batchSize int,
	gamma float64) (loss float64, stepped bool) {
	if a.NumAtoms > 1 {
		panic("optimize requires a scalar value head")
	}
	if memory.Len() < batchSize {
		return 0, false
	}
	batch, err := memory.Sample(batchSize)
	if err != nil {
		// Unreachable after the length check.
		panic(err)
	}

	params := a.Policy.Parameters()
	c := params[0].Vector.Creator()

	states := make([]anyvec.Vector, 0, batchSize)
	var nextStates []anyvec.Vector
	nonTerminal := make([]bool, 0, batchSize)
	actionMask := make([]float64, 0, batchSize*a.NumActions)
	rewards := make([]float64, 0, batchSize)
	for _, t := range batch {
		states = append(states, t.State)
		rewards = append(rewards, t.Reward)
		nonTerminal = append(nonTerminal, t.NextState != nil)
		if t.NextState != nil {
			nextStates = append(nextStates, t.NextState)
		}
		oneHot := make([]float64, a.NumActions)
		oneHot[t.Action] = 1
		actionMask = append(actionMask, oneHot...)
	}

	// Q(s, a) under the policy network for the actions
	// that were actually taken.
	policyOut := a.Policy.Apply(anydiff.NewConst(c.Concat(states...)), batchSize)
	mask := c.MakeVectorData(c.MakeNumericList(actionMask))
	chosen := anydiff.SumCols(&anydiff.Matrix{
		Data: anydiff.Mul(policyOut, anydiff.NewConst(mask)),
		Rows: batchSize,
		Cols: a.NumActions,
	})

	// TD targets from the frozen target network.
	// Terminal transitions bootstrap from zero.
	targets := make([]float64, batchSize)
	if len(nextStates) > 0 {
		targetOut := a.Target.Apply(anydiff.NewConst(c.Concat(nextStates...)),
			len(nextStates)).Output()
		maxes := rowMaxes(targetOut, a.NumActions)
		idx := 0
		for i, ok := range nonTerminal {
			if ok {
				targets[i] = gamma * maxes[idx]
				idx++
			}
		}
	}
	for i, r := range rewards {
		targets[i] += r
	}
	targetVec := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(targets)))

	cost := huberLoss(chosen, targetVec, batchSize)

	grad := anydiff.NewGrad(params...)
	upstream := c.MakeVector(1)
	upstream.AddScalar(c.MakeNumeric(1))
	cost.Propagate(upstream, grad)
	opt.Step(grad)

	return vectorValue(cost.Output()), true
}

// SyncTarget copies the policy parameters into the target
// network verbatim.
func (a *Agent) SyncTarget() {
	src := a.Policy.Parameters()
	dst := a.Target.Parameters()
	if len(src) != len(dst) {
		panic("mismatched policy and target networks")
	}
	for i, param := range src {
		dst[i].Vector.Set(param.Vector)
	}
}

// huberLoss is the mean smooth L1 loss between two
// batches of scalars: quadratic within one unit of the
// target and linear beyond it.
func huberLoss(actual, expected anydiff.Res, batchSize int) anydiff.Res {
	c := actual.Output().Creator()
	diff := anydiff.Sub(actual, expected)
	return anydiff.Pool(diff, func(diff anydiff.Res) anydiff.Res {
		abs := anydiff.Add(anydiff.ClipPos(diff),
			anydiff.ClipPos(anydiff.Scale(diff, c.MakeNumeric(-1))))
		return anydiff.Pool(abs, func(abs anydiff.Res) anydiff.Res {
			ones := c.MakeVector(batchSize)
			ones.AddScalar(c.MakeNumeric(1))
			// quad = min(|diff|, 1)
			quad := anydiff.Sub(abs, anydiff.ClipPos(anydiff.Sub(abs,
				anydiff.NewConst(ones))))
			return anydiff.Pool(quad, func(quad anydiff.Res) anydiff.Res {
				perSample := anydiff.Mul(quad, anydiff.Sub(abs,
					anydiff.Scale(quad, c.MakeNumeric(0.5))))
				sum := anydiff.SumCols(&anydiff.Matrix{
					Data: perSample,
					Rows: 1,
					Cols: batchSize,
				})
				return anydiff.Scale(sum, c.MakeNumeric(1/float64(batchSize)))
			})
		})
	})
}

// rowMaxes computes the maximum within each cols-sized
// row of a batched output vector.
func rowMaxes(vec anyvec.Vector, cols int) []float64 {
	data := vec.Creator().Float64Slice(vec.Data())
	res := make([]float64, 0, len(data)/cols)
	for i := 0; i < len(data); i += cols {
		max := data[i]
		for _, x := range data[i+1 : i+cols] {
			if x > max {
				max = x
			}
		}
		res = append(res, max)
	}
	return res
}

// vectorValue extracts the scalar from a length-1 vector.
func vectorValue(vec anyvec.Vector) float64 {
	return vec.Creator().Float64Slice(vec.Data())[0]
}

func clipRange(vec anyvec.Vector, bound float64) {
	c := vec.Creator()
	data := c.Float64Slice(vec.Data())
	changed := false
	for i, x := range data {
		if x > bound {
			data[i] = bound
			changed = true
		} else if x < -bound {
			data[i] = -bound
			changed = true
		}
	}
	if changed {
		vec.SetData(c.MakeNumericList(data))
	}
}
