// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package poller wraps the platform readiness notification mechanism
// behind one small interface: level-triggered epoll on Linux, kqueue on
// the BSDs and Darwin, and an unsupported stub elsewhere. The reactor is
// its only intended consumer.
package poller
