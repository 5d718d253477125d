package i18n

import "testing"

func clearLocaleEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LANGUAGE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "")
}

func TestDetectLanguagePriorityAndNormalization(t *testing.T) {
	t.Run("LANGUAGE has highest priority", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "ru_RU.UTF-8:en_US")
		t.Setenv("LC_ALL", "de_DE.UTF-8")

		if got := detectLanguage(); got != "ru_RU" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "ru_RU")
		}
	})

	t.Run("C and POSIX are skipped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "C")
		t.Setenv("LC_ALL", "POSIX")
		t.Setenv("LC_MESSAGES", "fr_FR.UTF-8")

		if got := detectLanguage(); got != "fr_FR" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "fr_FR")
		}
	})

	t.Run("falls back to en", func(t *testing.T) {
		clearLocaleEnv(t)
		if got := detectLanguage(); got != "en" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "en")
		}
	})
}

func TestTAndNFallbackWhenUninitialized(t *testing.T) {
	old := po
	po = nil
	t.Cleanup(func() { po = old })

	if got := T("Hello"); got != "Hello" {
		t.Fatalf("T fallback = %q, want %q", got, "Hello")
	}

	if got := N("file", "files", 1); got != "file" {
		t.Fatalf("N singular fallback = %q, want %q", got, "file")
	}

	if got := N("file", "files", 2); got != "files" {
		t.Fatalf("N plural fallback = %q, want %q", got, "files")
	}
}

func TestInitLoadsEmbeddedCatalogs(t *testing.T) {
	old := po
	t.Cleanup(func() { po = old })

	t.Run("russian plural forms", func(t *testing.T) {
		Init("ru")
		if got := T("Project"); got != "Проект" {
			t.Fatalf("T(Project) = %q, want %q", got, "Проект")
		}
		if got := N("Translated %d file", "Translated %d files", 1); got != "Переведён %d файл" {
			t.Fatalf("N(1) = %q, want one-form", got)
		}
		if got := N("Translated %d file", "Translated %d files", 3); got != "Переведено %d файла" {
			t.Fatalf("N(3) = %q, want few-form", got)
		}
		if got := N("Translated %d file", "Translated %d files", 5); got != "Переведено %d файлов" {
			t.Fatalf("N(5) = %q, want many-form", got)
		}
	})

	t.Run("vietnamese single form", func(t *testing.T) {
		Init("vi")
		if got := T("Languages"); got != "Ngôn ngữ" {
			t.Fatalf("T(Languages) = %q, want %q", got, "Ngôn ngữ")
		}
		if got := N("Translated %d file", "Translated %d files", 7); got != "Đã dịch %d tệp" {
			t.Fatalf("N(7) = %q, want the single form", got)
		}
	})

	t.Run("region variant falls back to base language", func(t *testing.T) {
		Init("ru_RU")
		if got := T("Languages"); got != "Языки" {
			t.Fatalf("T(Languages) = %q, want %q", got, "Языки")
		}
	})

	t.Run("missing catalog passes msgids through", func(t *testing.T) {
		Init("xx")
		if got := T("Project"); got != "Project" {
			t.Fatalf("T without catalog = %q, want passthrough", got)
		}
	})
}
