// Package redisstore persists navigation sessions in Redis so the session
// store can rehydrate across gateway restarts.
//
// Use Store.Loader with navgate.SessionStore.Hydrate to restore the boot
// session, and Save/Delete from login and logout paths to keep the persisted
// copy current.
package redisstore
