// Package commands implements protocol command handlers on top of a driver.Environment.
//
// Each handler decodes its JSON parameters, reads or updates the environment and, when it
// needs the page, runs a self-contained script through a surface.ScriptRunner. Elements are
// tracked page-side under generated ids and returned as {"ELEMENT": id} references; scripts
// resolve the focused frame from the environment's frame object.
//
// A Dispatcher routes commands by name and converts handler errors into wire status codes:
//
//	registry, _ := commands.NewDefaultRegistry(session, nil)
//	dispatcher := commands.NewDispatcher(env, registry, logger)
//	resp := dispatcher.Execute(ctx, "findElement", json.RawMessage(`{"using":"xpath","value":"//h1"}`))
//
// While a dialog is pending the dispatcher only runs alert handlers.
package commands
