// Package anydqn implements deep Q-learning with
// experience replay, a periodically synchronized target
// network, and noisy-layer exploration.
// See https://arxiv.org/abs/1312.5602 and
// https://arxiv.org/abs/1706.10295.
package anydqn
