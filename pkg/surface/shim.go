package surface

import (
	"fmt"
	"strconv"
)

// DefaultBindingName is the page global the dialog shim reports through.
const DefaultBindingName = "__forgeDriverNotify"

// AlertShim returns the script injected into every document before page script runs.
// It replaces window.alert, window.confirm and window.prompt with functions that report
// "<type>:<text>" through the named binding instead of opening a native dialog.
// confirm answers true and prompt answers its default value, so page script keeps running.
func AlertShim(bindingName string) string {
	return fmt.Sprintf(`(function() {
	var notify = function(kind, message) {
		var text = message === undefined || message === null ? '' : String(message);
		try {
			var fn = window[%[1]s];
			if (typeof fn === 'function') {
				fn(kind + ':' + text);
			}
		} catch (e) {}
	};
	window.alert = function(message) { notify('JSAlert', message); };
	window.confirm = function(message) { notify('JSConfirm', message); return true; };
	window.prompt = function(message, value) {
		notify('JSPrompt', message);
		return value === undefined ? '' : value;
	};
})();`, strconv.Quote(bindingName))
}
