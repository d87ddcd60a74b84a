// Package push implements the APNs delivery engine and notification
// message model.
//
// A Client talks to the Apple Push Notification service provider API over
// HTTP/2 using JWT provider-token authentication. Notifications are staged
// with Add and delivered in a batch by Send; per-item failures are
// collected as DeliveryError records and drained by Errors. Each worker in
// the dispatch pool owns its own Client.
package push
