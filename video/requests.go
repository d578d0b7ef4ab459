package video

import (
	"sync"

	"picam/video/source"
)

// request is one caller's demand for decoded image data.
type request struct {
	target source.Image
	done   bool
	err    error
}

// Requests is the set of images waiting for the next video frame. Each
// registration is tracked on its own, so callers sharing an image are
// completed independently. Delivery runs under the set's own lock, so once
// the last registration of an image is removed it is never written again.
type Requests struct {
	mu sync.Mutex
	m  map[source.Image]map[*request]struct{}
}

func NewRequests() *Requests {
	return &Requests{
		m: make(map[source.Image]map[*request]struct{}),
	}
}

// Add registers img and returns a new request, marked done by the next
// delivery.
func (r *Requests) Add(img source.Image) *request {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := &request{target: img}
	reqs, ok := r.m[img]
	if !ok {
		reqs = make(map[*request]struct{})
		r.m[img] = reqs
	}
	reqs[req] = struct{}{}
	return req
}

// Remove deregisters req. The image stays registered while other requests
// for it remain.
func (r *Requests) Remove(req *request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reqs, ok := r.m[req.target]
	if !ok {
		return
	}
	delete(reqs, req)
	if len(reqs) == 0 {
		delete(r.m, req.target)
	}
}

// Len is the number of distinct registered images.
func (r *Requests) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// Done reports whether req has been satisfied, and with what error.
func (r *Requests) Done(req *request) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return req.done, req.err
}

// Deliver calls fn once for every registered image and marks each of its
// requests with the outcome. A failure for one image does not stop
// delivery to the others; failures are returned keyed by image.
func (r *Requests) Deliver(fn func(img source.Image) error) map[source.Image]error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var failed map[source.Image]error
	for img, reqs := range r.m {
		err := fn(img)
		for req := range reqs {
			req.done, req.err = true, err
		}
		if err != nil {
			if failed == nil {
				failed = make(map[source.Image]error)
			}
			failed[img] = err
		}
	}
	return failed
}

// stillSlot holds the single pending still request.
type stillSlot struct {
	mu  sync.Mutex
	req *request
}

// Set makes img the pending still target.
func (s *stillSlot) Set(img source.Image) *request {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req = &request{target: img}
	return s.req
}

func (s *stillSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req = nil
}

func (s *stillSlot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req != nil
}

func (s *stillSlot) Done(req *request) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return req.done, req.err
}

// Deliver decodes into the pending target. It returns false, without
// calling fn, when no still is pending.
func (s *stillSlot) Deliver(fn func(img source.Image) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.req == nil {
		return false, nil
	}
	err := fn(s.req.target)
	s.req.done, s.req.err = true, err
	return true, err
}
