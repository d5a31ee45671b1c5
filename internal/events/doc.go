// Package events is the in-process signal bus that links the import stages.
//
// Publishers append events to a bounded history buffer and hand a copy to
// every matching subscription. Each subscription owns a goroutine and an
// unbounded queue, so a slow handler never blocks publishers or other
// subscribers. A handler error is retried with exponential backoff until the
// configured attempt count is spent, then logged and dropped.
//
// The history buffer backs the notification stream: clients resume with the
// last sequence number they saw through Since or Fetch.
package events
