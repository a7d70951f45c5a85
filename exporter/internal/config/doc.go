// Package config loads the exporter configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables (KDP_URL, KDP_CLIENT_ID, KDP_USER_ID,
// KDP_SECRET_KEY, KDP_RESOURCE and the optional KDP_* / LISTEN_ADDR /
// LOG_LEVEL settings). The merged result is validated; any error is fatal at
// startup.
//
// Watch(ctx, path, onChange) uses fsnotify to reload the YAML file when it
// changes. It re-adds the watch after atomic-save editors replace the file.
package config
