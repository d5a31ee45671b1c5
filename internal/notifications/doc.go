// Package notifications delivers import milestones to the operator.
//
// A Service formats each Event into a title and body once and hands the
// message to every configured sink: an ntfy topic over HTTP, the apprise CLI
// fed with the stored notification target URLs, and an echo onto the event
// bus so stream clients see what was sent. With no sink configured the
// service quietly drops messages.
//
// ImportNotifier bridges bus signals (track imported, images imported,
// import failure) to the service so workflow code never calls it directly.
package notifications
