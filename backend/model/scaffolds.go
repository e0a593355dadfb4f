package model

// Default editor scaffolds per language. Switching languages replaces
// the buffer with the new scaffold only while the buffer is empty or
// still equals the old language's unmodified scaffold.
var Scaffolds = map[string]string{
	"python": `# Write your solution below

def solution():
    # Your code here
    pass

if __name__ == "__main__":
    print(solution())
`,
	"javascript": `// Write your solution below

function solution() {
    // Your code here
}

console.log(solution());
`,
	"java": `// Write your solution below

public class Solution {
    public static void main(String[] args) {
        // Your code here
    }
}
`,
	"cpp": `// Write your solution below

#include <iostream>
using namespace std;

int main() {
    // Your code here
    return 0;
}
`,
	"go": `// Write your solution below

package main

import "fmt"

func main() {
    fmt.Println("hello")
}
`,
}
