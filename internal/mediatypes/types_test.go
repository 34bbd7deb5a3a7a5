package mediatypes

import (
	"testing"
)

func TestTypeForExt(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want ItemType
	}{
		{name: "jpg photo", ext: ".jpg", want: TypePhoto},
		{name: "jpeg photo", ext: ".jpeg", want: TypePhoto},
		{name: "png photo", ext: ".png", want: TypePhoto},
		{name: "webp photo", ext: ".webp", want: TypePhoto},
		{name: "gif photo", ext: ".gif", want: TypePhoto},
		{name: "mp4 video", ext: ".mp4", want: TypeVideo},
		{name: "webm video", ext: ".webm", want: TypeVideo},
		{name: "mov video", ext: ".mov", want: TypeVideo},
		{name: "mkv not whitelisted", ext: ".mkv", want: TypeOther},
		{name: "bmp not whitelisted", ext: ".bmp", want: TypeOther},
		{name: "unknown extension", ext: ".xyz", want: TypeOther},
		{name: "empty extension", ext: "", want: TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeForExt(tt.ext); got != tt.want {
				t.Errorf("TypeForExt(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestTypeForName(t *testing.T) {
	tests := []struct {
		name string
		want ItemType
	}{
		{"photo.jpg", TypePhoto},
		{"PHOTO.JPG", TypePhoto},
		{"movie.MP4", TypeVideo},
		{"archive.tar.gz", TypeOther},
		{"noextension", TypeOther},
		{"trailingdot.", TypeOther},
	}

	for _, tt := range tests {
		if got := TypeForName(tt.name); got != tt.want {
			t.Errorf("TypeForName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsMediaFile(t *testing.T) {
	if !IsMediaFile("A/p1.jpg") {
		t.Error("IsMediaFile(A/p1.jpg) = false")
	}
	if IsMediaFile("notes.txt") {
		t.Error("IsMediaFile(notes.txt) = true")
	}
}

func TestMimeTypeForName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"p.jpg", "image/jpeg"},
		{"p.jpeg", "image/jpeg"},
		{"p.png", "image/png"},
		{"p.webp", "image/webp"},
		{"p.gif", "image/gif"},
		{"v.mp4", "video/mp4"},
		{"v.webm", "video/webm"},
		{"v.mov", "video/quicktime"},
		{"x.bin", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := MimeTypeForName(tt.name); got != tt.want {
			t.Errorf("MimeTypeForName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestThumbRelPath(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"A/p1.jpg", "A/p1.webp"},
		{"A/p1.JPG", "A/p1.webp"},
		{"A/anim.gif", "A/anim.webp"},
		{"A/pic.webp", "A/pic.webp"},
		{"B/v.mp4", "B/v.jpg"},
		{"B/v.mov", "B/v.jpg"},
		{"B/clip.webm", "B/clip.jpg"},
		{"deep/tree/x.png", "deep/tree/x.webp"},
	}

	for _, tt := range tests {
		if got := ThumbRelPath(tt.rel); got != tt.want {
			t.Errorf("ThumbRelPath(%q) = %q, want %q", tt.rel, got, tt.want)
		}
	}
}

func TestIsIgnoredDir(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"@eaDir", true},
		{"#recycle", true},
		{".thumbnails", true},
		{".hidden", true},
		{"Holidays", false},
		{"2024", false},
	}

	for _, tt := range tests {
		if got := IsIgnoredDir(tt.name); got != tt.want {
			t.Errorf("IsIgnoredDir(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestThumbExt(t *testing.T) {
	if got := ThumbExt(TypePhoto); got != ".webp" {
		t.Errorf("ThumbExt(photo) = %q", got)
	}
	if got := ThumbExt(TypeVideo); got != ".jpg" {
		t.Errorf("ThumbExt(video) = %q", got)
	}
}
