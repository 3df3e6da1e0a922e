//go:build windows

// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package keystore

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

// Setting this to "true" skips the ACL check. Only for development machines
// where the key file ACL has been verified by hand
const envAllowInsecureKeyPerms = "VETRA_ALLOW_INSECURE_KEY_PERMS"

// Well-known groups that must not be granted access to a key file, by SDDL
// abbreviation and full SID
var insecureTrustees = map[string]string{
	"WD":           "Everyone",
	"S-1-1-0":      "Everyone",
	"BU":           "BUILTIN\\Users",
	"S-1-5-32-545": "BUILTIN\\Users",
	"AU":           "Authenticated Users",
	"S-1-5-11":     "Authenticated Users",
}

// NTFS refuses to replace an open file, so checking by name is safe here
func checkOpenFilePermissions(f *os.File) error {
	if strings.EqualFold(os.Getenv(envAllowInsecureKeyPerms), "true") {
		slog.Warn(
			"key file ACL verification bypassed",
			"component", "keystore",
			"path", f.Name(),
			"env_var", envAllowInsecureKeyPerms,
		)
		return nil
	}
	// The descriptor is never freed: doing so needs unsafe, which corrupts
	// the heap on Go 1.24+ (go.dev/issue/73199)
	sd, err := windows.GetNamedSecurityInfo(
		f.Name(),
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION,
	)
	if err != nil {
		return fmt.Errorf("failed to get security info for %q: %w", f.Name(), err)
	}
	return checkSDDL(f.Name(), sd.String())
}

// allowedTrustees returns the trustee of every ACCESS_ALLOWED entry in the
// DACL section of sddl. ok is false when there is no DACL at all
func allowedTrustees(sddl string) (trustees []string, ok bool) {
	_, dacl, found := strings.Cut(sddl, "D:")
	if !found {
		return nil, false
	}
	dacl, _, _ = strings.Cut(dacl, "S:")
	for {
		_, rest, found := strings.Cut(dacl, "(")
		if !found {
			break
		}
		ace, remaining, found := strings.Cut(rest, ")")
		if !found {
			break
		}
		dacl = remaining
		// type;flags;rights;object;inherit;trustee
		fields := strings.Split(ace, ";")
		if len(fields) < 6 || fields[0] != "A" {
			continue
		}
		trustees = append(trustees, fields[5])
	}
	return trustees, true
}

func checkSDDL(path, sddl string) error {
	trustees, ok := allowedTrustees(sddl)
	if !ok {
		return fmt.Errorf(
			"key file %q has no DACL (unrestricted access): %w",
			path,
			ErrInsecureFileMode,
		)
	}
	for _, trustee := range trustees {
		if name, found := insecureTrustees[trustee]; found {
			return fmt.Errorf(
				"key file %q grants access to %s: %w",
				path,
				name,
				ErrInsecureFileMode,
			)
		}
	}
	return nil
}
