package metrics

// RollingWindow is a fixed-capacity FIFO ring of samples. Pushing into a full
// window evicts the oldest sample. It is not safe for concurrent use; plugins
// only touch it from the host event loop.
type RollingWindow struct {
	buffer []float64
	head   int
	count  int
}

func NewRollingWindow(capacity int) *RollingWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &RollingWindow{buffer: make([]float64, capacity)}
}

func (w *RollingWindow) Push(v float64) {
	w.buffer[(w.head+w.count)%len(w.buffer)] = v
	if w.count < len(w.buffer) {
		w.count++
		return
	}
	w.head = (w.head + 1) % len(w.buffer)
}

func (w *RollingWindow) Len() int {
	return w.count
}

func (w *RollingWindow) Capacity() int {
	return len(w.buffer)
}

// Mean averages every sample in the window.
func (w *RollingWindow) Mean() (float64, bool) {
	return w.MeanLast(w.count)
}

// MeanLast averages the newest n samples, or all of them when fewer exist.
func (w *RollingWindow) MeanLast(n int) (float64, bool) {
	if w.count == 0 || n <= 0 {
		return 0, false
	}
	if n > w.count {
		n = w.count
	}
	sum := 0.0
	for i := w.count - n; i < w.count; i++ {
		sum += w.at(i)
	}
	return sum / float64(n), true
}

// Last returns the newest sample.
func (w *RollingWindow) Last() (float64, bool) {
	if w.count == 0 {
		return 0, false
	}
	return w.at(w.count - 1), true
}

// Values copies the samples oldest first.
func (w *RollingWindow) Values() []float64 {
	out := make([]float64, w.count)
	for i := range out {
		out[i] = w.at(i)
	}
	return out
}

func (w *RollingWindow) Reset() {
	w.head = 0
	w.count = 0
}

func (w *RollingWindow) at(i int) float64 {
	return w.buffer[(w.head+i)%len(w.buffer)]
}
