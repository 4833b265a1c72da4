//go:build darwin

package permission

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation
#include <ApplicationServices/ApplicationServices.h>

static int isProcessTrusted(int prompt) {
    const void *keys[] = { kAXTrustedCheckOptionPrompt };
    const void *values[] = { prompt ? kCFBooleanTrue : kCFBooleanFalse };
    CFDictionaryRef options = CFDictionaryCreate(kCFAllocatorDefault, keys, values, 1,
        &kCFCopyStringDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
    Boolean trusted = AXIsProcessTrustedWithOptions(options);
    CFRelease(options);
    return trusted ? 1 : 0;
}
*/
import "C"

// Check asks the accessibility trust store whether this process is trusted.
// With prompt set, macOS shows its permission dialog the first time.
func Check(prompt bool) bool {
	p := 0
	if prompt {
		p = 1
	}
	return C.isProcessTrusted(C.int(p)) == 1
}
