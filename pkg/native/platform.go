package native

// registerPlatform installs every built-in native implementation this
// interpreter ships with, grouped by the JDK area they belong to.
func registerPlatform(r *Registry) {
	registerSystem(r)
	registerBoxing(r)
	registerStrings(r)
	registerIO(r)
	registerHashMap(r)
}
