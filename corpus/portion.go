package corpus

// SelectPortion returns the leading floor(portion*len) documents of a
// training split. The prefix is taken in corpus order, not sampled, so
// runs are reproducible for a fixed upstream order. portion == 1 returns
// the split unchanged; values outside (0, 1] are clamped.
func SelectPortion(train Split, portion float64) Split {
	n := int(portion * float64(train.Len()))
	if n < 0 {
		n = 0
	}
	if n > train.Len() {
		n = train.Len()
	}
	return Split{
		Texts:  train.Texts[:n:n],
		Labels: train.Labels[:n:n],
	}
}
