// Package surface holds the pieces shared by the browser surface adapters: listener
// bookkeeping, the injected dialog shim and the script runner contract command handlers use.
//
// Adapters install one browser-level hook per event (an exposed binding, a request listener)
// and fan each event out to the listeners registered through driver.Surface. Listeners can be
// removed at any time; browser hooks live as long as the page.
package surface
